package ordering

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/paymentbackend/lib/mycontext"
	"github.com/MarcGrol/paymentbackend/lib/myhttp"
	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mypublisher"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(orderStore mystore.Store[Order], basketStore mystore.Store[shop.Basket], nower mytime.Nower, publisher mypublisher.Publisher) *webService {
	logger := mylog.New("ordering")

	return &webService{
		logger:  logger,
		service: newService(orderStore, basketStore, nower, logger, publisher),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/order/{orderNumber}", s.orderDetailsPage()).Methods("GET")
}

// PlaceOrder is the entrypoint used by payment-processor services once a
// notification has been validated.
func (s *webService) PlaceOrder(c context.Context, basket shop.Basket, payment PaymentDetail) (Order, bool, error) {
	return s.service.PlaceOrder(c, basket, payment)
}

func (s *webService) orderDetailsPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderNumber := mux.Vars(r)["orderNumber"]

		order, err := s.service.getOrder(c, orderNumber)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}
