package checkoutpayu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MarcGrol/paymentbackend/services/paymentevents"
)

func TestClassifyTransactionState(t *testing.T) {
	assert.Equal(t, paymentevents.PaymentStatusAccepted, classifyTransactionState("4"))
	assert.Equal(t, paymentevents.PaymentStatusDeclined, classifyTransactionState("6"))
	assert.Equal(t, paymentevents.PaymentStatusPending, classifyTransactionState("7"))
	assert.Equal(t, paymentevents.PaymentStatusError, classifyTransactionState("104"))

	// anything outside the table is unrecognized, never a success
	assert.Equal(t, paymentevents.PaymentStatusUnrecognized, classifyTransactionState("5"))
	assert.Equal(t, paymentevents.PaymentStatusUnrecognized, classifyTransactionState(""))
	assert.Equal(t, paymentevents.PaymentStatusUnrecognized, classifyTransactionState("42"))
}

func TestInstrumentLabel(t *testing.T) {
	assert.Equal(t, "Visa ****1111", instrumentLabel("VISA", "411111******1111"))
	assert.Equal(t, "Mastercard", instrumentLabel("MASTERCARD", ""))
	assert.Equal(t, "PSE bank transfer", instrumentLabel("PSE", ""))
	assert.Equal(t, "NEQUI", instrumentLabel("NEQUI", ""))
}
