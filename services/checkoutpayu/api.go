package checkoutpayu

import (
	"context"

	"github.com/MarcGrol/paymentbackend/services/ordering"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

//go:generate mockgen -source=api.go -package checkoutpayu -destination orderplacer_mock.go OrderPlacer

// OrderPlacer turns a basket plus a validated payment into a durable order.
// Placement is idempotent: calling it again for the same order number
// returns the existing order.
type OrderPlacer interface {
	PlaceOrder(c context.Context, basket shop.Basket, payment ordering.PaymentDetail) (ordering.Order, bool, error)
}
