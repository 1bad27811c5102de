package paymentevents

const (
	TopicName            = "payment"
	paymentRequestedName = TopicName + ".requested"
	paymentCompletedName = TopicName + ".completed"
	orderPlacedName      = TopicName + ".orderPlaced"
)

// PaymentStatus is the internal outcome of a gateway notification.
// Anything the gateway reports that we do not explicitly recognize becomes
// PaymentStatusUnrecognized, never a success.
type PaymentStatus string

const (
	PaymentStatusUndefined    PaymentStatus = ""
	PaymentStatusAccepted     PaymentStatus = "accepted"
	PaymentStatusDeclined     PaymentStatus = "declined"
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusError        PaymentStatus = "error"
	PaymentStatusUnrecognized PaymentStatus = "unrecognized"
)

type PaymentRequested struct {
	ProviderName string
	BasketUID    string
	OrderNumber  string
	Reference    string
	Amount       string
	Currency     string
	BuyerEmail   string
}

func (e PaymentRequested) GetEventTypeName() string {
	return paymentRequestedName
}

func (e PaymentRequested) GetAggregateName() string {
	return e.BasketUID
}

type PaymentCompleted struct {
	ProviderName  string
	BasketUID     string
	OrderNumber   string
	TransactionID string
	Status        PaymentStatus
	StatusDetails string
	Amount        string
	Currency      string
	PaymentMethod string
}

func (e PaymentCompleted) GetEventTypeName() string {
	return paymentCompletedName
}

func (e PaymentCompleted) GetAggregateName() string {
	return e.BasketUID
}

type OrderPlaced struct {
	OrderNumber   string
	BasketUID     string
	TransactionID string
	TotalInclTax  string
	Currency      string
}

func (e OrderPlaced) GetEventTypeName() string {
	return orderPlacedName
}

func (e OrderPlaced) GetAggregateName() string {
	return e.OrderNumber
}
