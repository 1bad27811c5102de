package checkoutpayu

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/paymentbackend/lib/mycontext"
	"github.com/MarcGrol/paymentbackend/lib/myerrors"
	"github.com/MarcGrol/paymentbackend/lib/myhttp"
	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mypublisher"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/services/identity"
	"github.com/MarcGrol/paymentbackend/services/paymentevents"
	"github.com/MarcGrol/paymentbackend/services/responselog"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

//go:embed templates
var templateFolder embed.FS
var (
	paymentFormTemplate *template.Template
)

func init() {
	paymentFormTemplate = template.Must(template.ParseFS(templateFolder, "templates/payment_form.html"))
}

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(cfg Config, basketStore mystore.Store[shop.Basket], responseLog responselog.Recorder, accountFetcher identity.AccountFetcher, orderPlacer OrderPlacer, publisher mypublisher.Publisher) (*webService, error) {
	logger := mylog.New("checkoutpayu")

	return &webService{
		logger:  logger,
		service: newService(cfg, basketStore, responseLog, accountFetcher, orderPlacer, publisher, logger),
	}, nil
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	// Endpoint that composes the self-submitting payment form
	router.HandleFunc("/payu/checkout/{basketUID}", s.startCheckoutPage()).Methods("POST")

	// PayU redirects the buyer's browser here after checkout
	router.HandleFunc("/payu/return", s.checkoutReturnedPage()).Methods("GET")

	// Server-to-server notification called by PayU at a later time
	router.HandleFunc("/payu/confirmation", s.confirmationNotification()).Methods("POST")

	router.HandleFunc("/payu/refund/{orderNumber}", s.refundPage()).Methods("POST")

	err := s.service.publisher.CreateTopic(c, paymentevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", paymentevents.TopicName, err)
	}

	return nil
}

func (s *webService) startCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		basketUID := mux.Vars(r)["basketUID"]
		hostname := myhttp.HostnameWithScheme(r)

		page, err := s.service.startCheckout(c, basketUID, hostname)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = paymentFormTemplate.Execute(w, page)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInternalError(fmt.Errorf("error rendering payment form: %s", err)))
			return
		}
	}
}

func (s *webService) checkoutReturnedPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)

		redirectURL := s.service.finalizeCheckout(c, r.URL.Query())

		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
	}
}

func (s *webService) confirmationNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := r.ParseForm()
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(err))
			return
		}

		err = s.service.handleConfirmation(c, r.PostForm)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		// 200 acknowledges receipt, declines included, so the gateway stops resending
		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "notification handled"})
	}
}

func (s *webService) refundPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderNumber := mux.Vars(r)["orderNumber"]

		err := s.service.issueCredit(c, orderNumber)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "refund issued"})
	}
}
