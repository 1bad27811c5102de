package responselog

import (
	"context"
	"errors"
)

var (
	// ErrUnknownBasket means no outbound record matches the payment reference
	ErrUnknownBasket = errors.New("no basket matches payment reference")
	// ErrAmbiguousBasket means multiple outbound records claim the same
	// payment reference: a defect that must be detected, not guessed around
	ErrAmbiguousBasket = errors.New("multiple baskets match payment reference")
)

type Recorder interface {
	// RecordRequest appends the outbound parameter set. Returns the record uid.
	RecordRequest(c context.Context, processorName string, paymentReference string, basketUID string, payload string) (string, error)

	// RecordNotification appends an inbound notification, valid or not.
	// An empty basketUID is allowed: forged notifications are logged too.
	RecordNotification(c context.Context, processorName string, transactionID string, paymentReference string, basketUID string, payload string) (string, error)

	// FindBasketByReference resolves the basket that originated the outbound
	// request with the given payment reference.
	FindBasketByReference(c context.Context, processorName string, paymentReference string) (string, error)

	// CountRequests returns the number of outbound requests recorded for a basket
	CountRequests(c context.Context, processorName string, basketUID string) (int, error)

	// ListByTransactionID returns the full audit trail for a transaction
	ListByTransactionID(c context.Context, processorName string, transactionID string) ([]ProcessorResponseRecord, error)
}
