package shop

import (
	"context"
	"fmt"

	"github.com/MarcGrol/paymentbackend/lib/myerrors"
	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/lib/myuuid"
)

const (
	orderNumberSequenceUID = "basket-order-number"
)

// orderNumberSequence backs the one-time derivation of an order number:
// once assigned to a basket it never changes, however often it is read
type orderNumberSequence struct {
	Next int
}

type service struct {
	orderNumberPrefix string
	basketStore       mystore.Store[Basket]
	sequenceStore     mystore.Store[orderNumberSequence]
	nower             mytime.Nower
	uuider            myuuid.UUIDer
	logger            mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(orderNumberPrefix string, basketStore mystore.Store[Basket], sequenceStore mystore.Store[orderNumberSequence], nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		orderNumberPrefix: orderNumberPrefix,
		basketStore:       basketStore,
		sequenceStore:     sequenceStore,
		nower:             nower,
		uuider:            uuider,
		logger:            logger,
	}
}

func (s *service) createBasket(c context.Context, basket Basket) (Basket, error) {
	basket.UID = s.uuider.Create()
	basket.CreatedAt = s.nower.Now()
	basket.State = BasketStateOpen

	for _, line := range basket.Lines {
		if err := line.Validate(); err != nil {
			return Basket{}, myerrors.NewInvalidInputError(err)
		}
	}

	orderNumber, err := s.nextOrderNumber(c)
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error deriving order number: %s", err))
	}
	basket.OrderNumber = orderNumber

	err = s.basketStore.Put(c, basket.UID, basket)
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error storing basket: %s", err))
	}

	s.logger.Log(c, basket.UID, mylog.SeverityInfo, "Created basket %s with order number %s", basket.UID, basket.OrderNumber)

	return basket, nil
}

func (s *service) nextOrderNumber(c context.Context) (string, error) {
	var orderNumber string
	err := s.sequenceStore.RunInTransaction(c, func(c context.Context) error {
		sequence, found, err := s.sequenceStore.Get(c, orderNumberSequenceUID)
		if err != nil {
			return err
		}
		if !found {
			sequence = orderNumberSequence{Next: 100}
		}

		orderNumber = fmt.Sprintf("%s-%d", s.orderNumberPrefix, sequence.Next)
		sequence.Next++

		return s.sequenceStore.Put(c, orderNumberSequenceUID, sequence)
	})
	if err != nil {
		return "", err
	}

	return orderNumber, nil
}

func (s *service) getBasket(c context.Context, basketUID string) (Basket, error) {
	basket, found, err := s.basketStore.Get(c, basketUID)
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error fetching basket with uid %s: %s", basketUID, err))
	}
	if !found {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("basket with uid %s not found", basketUID))
	}

	return basket, nil
}

func (s *service) listBaskets(c context.Context) ([]Basket, error) {
	baskets, err := s.basketStore.List(c)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error listing baskets: %s", err))
	}

	return baskets, nil
}
