package shop

import (
	"context"
	"fmt"
	"net/http"

	formcodec "github.com/go-playground/form/v4"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/paymentbackend/lib/mycontext"
	"github.com/MarcGrol/paymentbackend/lib/myerrors"
	"github.com/MarcGrol/paymentbackend/lib/myhttp"
	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/lib/myuuid"
)

type basketForm struct {
	Currency      string     `form:"currency"`
	OwnerUsername string     `form:"owner.username"`
	OwnerEmail    string     `form:"owner.email"`
	OwnerFullName string     `form:"owner.fullName"`
	AllowedBin    string     `form:"allowedBin"`
	Lines         []lineForm `form:"lines"`
}

type lineForm struct {
	ProductID        string `form:"productId"`
	Description      string `form:"description"`
	Quantity         int    `form:"quantity"`
	UnitPriceExclTax string `form:"unitPriceExclTax"`
	UnitPriceInclTax string `form:"unitPriceInclTax"`
}

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(orderNumberPrefix string, basketStore mystore.Store[Basket], nower mytime.Nower, uuider myuuid.UUIDer) (*webService, error) {
	logger := mylog.New("shop")

	sequenceStore, _, err := mystore.New[orderNumberSequence](context.Background())
	if err != nil {
		return nil, err
	}

	return &webService{
		logger:  logger,
		service: newService(orderNumberPrefix, basketStore, sequenceStore, nower, uuider, logger),
	}, nil
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/basket", s.createBasketPage()).Methods("POST")
	router.HandleFunc("/basket", s.listBasketsPage()).Methods("GET")
	router.HandleFunc("/basket/{basketUID}", s.basketDetailsPage()).Methods("GET")
}

func (s *webService) createBasketPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		basket, err := parseBasketRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		createdBasket, err := s.service.createBasket(c, basket)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, createdBasket)
	}
}

func (s *webService) listBasketsPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		baskets, err := s.service.listBaskets(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, baskets)
	}
}

func (s *webService) basketDetailsPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		basketUID := mux.Vars(r)["basketUID"]

		basket, err := s.service.getBasket(c, basketUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, basket)
	}
}

func parseBasketRequest(r *http.Request) (Basket, error) {
	err := r.ParseForm()
	if err != nil {
		return Basket{}, myerrors.NewInvalidInputError(err)
	}

	form := basketForm{}
	err = formcodec.NewDecoder().Decode(&form, r.Form)
	if err != nil {
		return Basket{}, fmt.Errorf("error decoding form: %s", err)
	}

	basket := Basket{
		Currency: form.Currency,
		Owner: Buyer{
			Username: form.OwnerUsername,
			Email:    form.OwnerEmail,
			FullName: form.OwnerFullName,
		},
		AllowedBin: form.AllowedBin,
	}
	for _, line := range form.Lines {
		basket.Lines = append(basket.Lines, Line{
			ProductID:        line.ProductID,
			Description:      line.Description,
			Quantity:         line.Quantity,
			UnitPriceExclTax: line.UnitPriceExclTax,
			UnitPriceInclTax: line.UnitPriceInclTax,
			Currency:         form.Currency,
		})
	}

	return basket, nil
}
