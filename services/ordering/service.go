package ordering

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MarcGrol/paymentbackend/lib/myerrors"
	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mypublisher"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/services/paymentevents"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

type service struct {
	orderStore  mystore.Store[Order]
	basketStore mystore.Store[shop.Basket]
	nower       mytime.Nower
	logger      mylog.Logger
	publisher   mypublisher.Publisher
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(orderStore mystore.Store[Order], basketStore mystore.Store[shop.Basket], nower mytime.Nower, logger mylog.Logger, publisher mypublisher.Publisher) *service {
	return &service{
		orderStore:  orderStore,
		basketStore: basketStore,
		nower:       nower,
		logger:      logger,
		publisher:   publisher,
	}
}

// PlaceOrder converts a basket plus a validated payment outcome into a
// durable order with exactly one pair of ledger entries. It is safe to call
// any number of times for the same basket: the first call creates the order,
// every later call observes it and returns it unchanged.
func (s *service) PlaceOrder(c context.Context, basket shop.Basket, payment PaymentDetail) (Order, bool, error) {
	s.logger.Log(c, basket.UID, mylog.SeverityInfo, "Place order %s for basket %s (transaction %s)", basket.OrderNumber, basket.UID, payment.TransactionID)

	err := basket.Validate()
	if err != nil {
		return Order{}, false, myerrors.NewInvalidInputError(err)
	}

	var order Order
	created := false
	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		existing, found, err := s.orderStore.Get(c, basket.OrderNumber)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", basket.OrderNumber, err))
		}
		if found {
			// Duplicate or replayed notification: the order exists, the
			// ledger is already complete, nothing more to do.
			order = existing
			return nil
		}

		order = s.composeOrder(basket, payment)

		err = s.orderStore.Put(c, order.OrderNumber, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", order.OrderNumber, err))
		}
		created = true

		err = s.publisher.Publish(c, paymentevents.TopicName, paymentevents.OrderPlaced{
			OrderNumber:   order.OrderNumber,
			BasketUID:     basket.UID,
			TransactionID: payment.TransactionID,
			TotalInclTax:  order.TotalInclTax,
			Currency:      order.Currency,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return Order{}, false, err
	}

	if created {
		s.freezeBasket(c, basket.UID)
		s.logger.Log(c, basket.UID, mylog.SeverityInfo, "Placed order %s", order.OrderNumber)
	} else {
		s.logger.Log(c, basket.UID, mylog.SeverityInfo, "Order %s already placed, returning existing order", order.OrderNumber)
	}

	return order, created, nil
}

func (s *service) composeOrder(basket shop.Basket, payment PaymentDetail) Order {
	now := s.nower.Now()

	// The total is always recomputed from the basket contents: the amount
	// claimed by the notification is untrusted input.
	shippingCharge := decimal.Zero // digital goods, no shipping required
	totalInclTax := basket.TotalInclTax().Add(shippingCharge)
	totalExclTax := basket.TotalExclTax().Add(shippingCharge)

	order := Order{
		OrderNumber:    basket.OrderNumber,
		BasketUID:      basket.UID,
		PlacedAt:       now,
		OwnerUsername:  basket.Owner.Username,
		OwnerEmail:     basket.Owner.Email,
		Currency:       basket.Currency,
		TotalExclTax:   totalExclTax.StringFixed(2),
		TotalInclTax:   totalInclTax.StringFixed(2),
		ShippingCharge: shippingCharge.StringFixed(2),
		Notes: []string{
			fmt.Sprintf("%s confirmation for order %s (transaction %s)", payment.ProcessorName, basket.OrderNumber, payment.TransactionID),
		},
		Sources: []Source{
			{
				ProcessorName:   payment.ProcessorName,
				Reference:       payment.TransactionID,
				Label:           payment.Label,
				Currency:        payment.Currency,
				AmountAllocated: payment.Amount.StringFixed(2),
				AmountDebited:   payment.Amount.StringFixed(2),
			},
		},
		PaymentEvents: []PaymentEvent{
			{
				EventType:     PaymentEventTypePaid,
				ProcessorName: payment.ProcessorName,
				Reference:     payment.TransactionID,
				Amount:        payment.Amount.StringFixed(2),
				Currency:      payment.Currency,
				CreatedAt:     now,
			},
		},
	}

	for _, line := range basket.Lines {
		order.Lines = append(order.Lines, OrderLine{
			ProductID:        line.ProductID,
			Description:      line.Description,
			Quantity:         line.Quantity,
			UnitPriceExclTax: line.UnitPriceExclTax,
			UnitPriceInclTax: line.UnitPriceInclTax,
		})
	}

	return order
}

// freezeBasket marks the basket as submitted. A failure here is logged and
// not propagated: the order exists, which is what reconciliation guarantees.
func (s *service) freezeBasket(c context.Context, basketUID string) {
	err := s.basketStore.RunInTransaction(c, func(c context.Context) error {
		basket, found, err := s.basketStore.Get(c, basketUID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("basket with uid %s not found", basketUID)
		}

		now := s.nower.Now()
		basket.State = shop.BasketStateSubmitted
		basket.LastModified = &now

		return s.basketStore.Put(c, basketUID, basket)
	})
	if err != nil {
		s.logger.Log(c, basketUID, mylog.SeverityWarn, "Error freezing basket %s: %s", basketUID, err)
	}
}

func (s *service) getOrder(c context.Context, orderNumber string) (Order, error) {
	order, found, err := s.orderStore.Get(c, orderNumber)
	if err != nil {
		return Order{}, myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderNumber, err))
	}
	if !found {
		return Order{}, myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderNumber))
	}

	return order, nil
}
