package checkoutpayu

import (
	"errors"
	"net/url"

	"github.com/MarcGrol/paymentbackend/services/paymentevents"
)

const (
	// ProcessorName keys the response log and ledger entries
	ProcessorName = "payu"
)

var (
	// ErrInvalidSignature means the notification failed signature verification
	// and must be rejected before any business field is interpreted
	ErrInvalidSignature = errors.New("notification signature is invalid")
)

// Config holds the static, processor-issued site credentials and the URLs
// the gateway bounces the buyer back to. Injected at construction time,
// never read from ambient state.
type Config struct {
	PaymentPageURL string
	MerchantID     string
	AccountID      string
	APIKey         string
	Tax            string
	TaxReturnBase  string
	// DescriptionPrefix is prepended to the derived order description
	DescriptionPrefix string
	// TestMode adds the gateway's sandbox flag to every outbound request
	TestMode bool

	ReturnURL       string
	ConfirmationURL string
	ReceiptPageURL  string
	DashboardURL    string
	ErrorPageURL    string
}

// Transaction state codes as reported by the gateway in state_pol
const (
	transactionStateAccepted = "4"
	transactionStateDeclined = "6"
	transactionStatePending  = "7"
	transactionStateError    = "104"
)

// classifyTransactionState maps the gateway state code onto the internal
// payment status. The mapping is total: any code outside the table becomes
// Unrecognized, never a success.
func classifyTransactionState(stateCode string) paymentevents.PaymentStatus {
	switch stateCode {
	case transactionStateAccepted:
		return paymentevents.PaymentStatusAccepted
	case transactionStateDeclined:
		return paymentevents.PaymentStatusDeclined
	case transactionStatePending:
		return paymentevents.PaymentStatusPending
	case transactionStateError:
		return paymentevents.PaymentStatusError
	default:
		return paymentevents.PaymentStatusUnrecognized
	}
}

// paymentMethodLabels translates the gateway's payment-method codes into a
// human-readable instrument label for the ledger
var paymentMethodLabels = map[string]string{
	"VISA":       "Visa",
	"MASTERCARD": "Mastercard",
	"AMEX":       "American Express",
	"DINERS":     "Diners Club",
	"PSE":        "PSE bank transfer",
	"EFECTY":     "Efecty cash",
	"BALOTO":     "Baloto cash",
}

func paymentMethodLabel(code string) string {
	label, found := paymentMethodLabels[code]
	if !found {
		return code
	}

	return label
}

// instrumentLabel composes the masked payment-instrument description for the
// ledger, e.g. "Visa ****1111"
func instrumentLabel(methodCode string, cardNumber string) string {
	label := paymentMethodLabel(methodCode)
	if len(cardNumber) >= 4 {
		return label + " ****" + cardNumber[len(cardNumber)-4:]
	}

	return label
}

// CheckoutPage carries everything the payment form template needs to
// redirect the buyer to the hosted payment page.
type CheckoutPage struct {
	BasketUID      string
	PaymentPageURL string
	Parameters     url.Values
}

// TransactionOutcome is the validated result of an inbound notification
type TransactionOutcome struct {
	Status          paymentevents.PaymentStatus
	TransactionID   string
	Reference       string
	Amount          string
	Currency        string
	InstrumentLabel string
}
