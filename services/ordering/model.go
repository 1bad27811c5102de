package ordering

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the durable result of a successful reconciliation. It is keyed by
// its order number so that the storage layer enforces at-most-one order per
// number; its ledger entries live inside the entity so that order, note and
// ledger are created in one atomic write.
type Order struct {
	OrderNumber    string
	BasketUID      string
	PlacedAt       time.Time
	OwnerUsername  string
	OwnerEmail     string
	Currency       string
	TotalExclTax   string
	TotalInclTax   string
	ShippingCharge string
	Lines          []OrderLine
	Notes          []string
	Sources        []Source
	PaymentEvents  []PaymentEvent
}

type OrderLine struct {
	ProductID        string
	Description      string
	Quantity         int
	UnitPriceExclTax string
	UnitPriceInclTax string
}

// Source documents where the money came from; append-only once attached
type Source struct {
	ProcessorName   string
	Reference       string
	Label           string
	Currency        string
	AmountAllocated string
	AmountDebited   string
}

const (
	PaymentEventTypePaid = "paid"
)

// PaymentEvent documents that a payment happened; append-only once attached
type PaymentEvent struct {
	EventType     string
	ProcessorName string
	Reference     string
	Amount        string
	Currency      string
	CreatedAt     time.Time
}

// PaymentDetail is the validated gateway outcome reconciliation consumes.
// Its amount is used for the ledger reference, never as the charged total:
// that is recomputed from the basket.
type PaymentDetail struct {
	ProcessorName string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Label         string
}
