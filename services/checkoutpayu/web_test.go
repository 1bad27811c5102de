package checkoutpayu

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/paymentbackend/lib/mypublisher"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/lib/myuuid"
	"github.com/MarcGrol/paymentbackend/services/identity"
	"github.com/MarcGrol/paymentbackend/services/ordering"
	"github.com/MarcGrol/paymentbackend/services/responselog"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

var testConfig = Config{
	PaymentPageURL:    "https://sandbox.checkout.payulatam.com/ppp-web-gateway-payu/",
	MerchantID:        "508029",
	AccountID:         "512321",
	APIKey:            "4Vj8eK4rloUd272L48hsrarnUA",
	Tax:               "0",
	TaxReturnBase:     "0",
	DescriptionPrefix: "Enrollment in",
	TestMode:          true,
	ReturnURL:         "https://my.shop.example/payu/return",
	ConfirmationURL:   "https://my.shop.example/payu/confirmation",
	ReceiptPageURL:    "https://my.shop.example/receipt",
	DashboardURL:      "https://my.shop.example/dashboard",
	ErrorPageURL:      "https://my.shop.example/error",
}

func TestCheckout(t *testing.T) {
	t.Run("Start checkout composes a signed payment form", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.storeBasket(t)
		f.accountFetcher.EXPECT().AccountDetails(gomock.Any(), "john").Return(identity.Enrichment{
			DocumentID: "12345678",
			FullName:   "John Jairo Doe",
		}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		// when
		response := f.post(t, "/payu/checkout/basket-123", nil)

		// then
		assert.Equal(t, 200, response.Code)
		body := response.Body.String()
		assert.Contains(t, body, testConfig.PaymentPageURL)
		assert.Contains(t, body, `name="referenceCode" value="EDX-100-000001"`)
		assert.Contains(t, body, `name="amount" value="50.00"`)
		assert.Contains(t, body, `name="payerDocument" value="12345678"`)
		assert.Contains(t, body, `name="buyerFullName" value="John Jairo Doe"`)
		assert.Contains(t, body, `name="test" value="1"`)
		assert.Contains(t, body, `name="signature" value="`)

		// and: the outbound request was recorded for later basket lookup
		count, err := f.responseLog.CountRequests(f.ctx, ProcessorName, "basket-123")
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
		basketUID, err := f.responseLog.FindBasketByReference(f.ctx, ProcessorName, "EDX-100-000001")
		assert.NoError(t, err)
		assert.Equal(t, "basket-123", basketUID)
	})

	t.Run("Retried checkout gets a fresh reference", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.storeBasket(t)
		f.accountFetcher.EXPECT().AccountDetails(gomock.Any(), "john").Return(identity.Enrichment{}, nil).Times(2)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

		assert.Equal(t, 200, f.post(t, "/payu/checkout/basket-123", nil).Code)
		response := f.post(t, "/payu/checkout/basket-123", nil)

		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `name="referenceCode" value="EDX-100-000002"`)
	})

	t.Run("Identity failure does not block checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.storeBasket(t)
		f.accountFetcher.EXPECT().AccountDetails(gomock.Any(), "john").Return(identity.Enrichment{}, fmt.Errorf("timeout"))
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		response := f.post(t, "/payu/checkout/basket-123", nil)

		assert.Equal(t, 200, response.Code)
		assert.NotContains(t, response.Body.String(), "payerDocument")
	})

	t.Run("Refunds are not supported", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)

		response := f.post(t, "/payu/refund/EDX-100", nil)

		assert.Equal(t, 501, response.Code)
	})

	t.Run("Start checkout for unknown basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)

		response := f.post(t, "/payu/checkout/basket-999", nil)

		assert.Equal(t, 404, response.Code)
	})
}

func TestConfirmation(t *testing.T) {
	t.Run("Accepted confirmation places exactly one order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		// when
		response := f.post(t, "/payu/confirmation", acceptedConfirmation())

		// then
		assert.Equal(t, 200, response.Code)

		order, found, err := f.orderStore.Get(f.ctx, "EDX-100")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Len(t, order.Sources, 1)
		assert.Equal(t, "50.00", order.Sources[0].AmountDebited)
		assert.Equal(t, "tx-1", order.Sources[0].Reference)
		assert.Equal(t, "PayU (john@example.com)", order.Sources[0].Label)
		assert.Len(t, order.PaymentEvents, 1)
	})

	t.Run("Replayed confirmation is idempotent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		assert.Equal(t, 200, f.post(t, "/payu/confirmation", acceptedConfirmation()).Code)

		// when: the exact same notification arrives again
		response := f.post(t, "/payu/confirmation", acceptedConfirmation())

		// then: acknowledged, audit trail grew, ledger did not
		assert.Equal(t, 200, response.Code)

		records, err := f.responseLog.ListByTransactionID(f.ctx, ProcessorName, "tx-1")
		assert.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, "4", records[0].PayloadValues().Get("state_pol"))

		order, _, err := f.orderStore.Get(f.ctx, "EDX-100")
		assert.NoError(t, err)
		assert.Len(t, order.Sources, 1)
		assert.Len(t, order.PaymentEvents, 1)
	})

	t.Run("Forged signature is rejected but still audited", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)

		form := acceptedConfirmation()
		form.Set("sign", "ffffffffffffffffffffffffffffffff")

		// when
		response := f.post(t, "/payu/confirmation", form)

		// then
		assert.Equal(t, 403, response.Code)

		records, err := f.responseLog.ListByTransactionID(f.ctx, ProcessorName, "tx-1")
		assert.NoError(t, err)
		assert.Len(t, records, 1)

		_, found, err := f.orderStore.Get(f.ctx, "EDX-100")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Declined confirmation is acknowledged without an order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		form := acceptedConfirmation()
		form.Set("state_pol", "6")
		form.Set("sign", "f10984a6cb2677b1d11844acdb03816a")

		response := f.post(t, "/payu/confirmation", form)

		assert.Equal(t, 200, response.Code)
		_, found, _ := f.orderStore.Get(f.ctx, "EDX-100")
		assert.False(t, found)
	})

	t.Run("Unknown state code never counts as success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		form := acceptedConfirmation()
		form.Set("state_pol", "99")
		form.Set("sign", "79b2b31ac576f6d245e885472f8ed404")

		response := f.post(t, "/payu/confirmation", form)

		assert.Equal(t, 200, response.Code)
		_, found, _ := f.orderStore.Get(f.ctx, "EDX-100")
		assert.False(t, found)
	})

	t.Run("Confirmation for unknown reference", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)

		form := acceptedConfirmation()
		form.Set("reference_sale", "EDX-999-000001")
		form.Set("sign", "e624d7fc4c23924e8e33c75db76fa67b")

		response := f.post(t, "/payu/confirmation", form)

		assert.Equal(t, 400, response.Code)
	})
}

func TestCheckoutReturned(t *testing.T) {
	t.Run("Accepted state redirects to receipt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)

		response := f.get(t, "/payu/return?referenceCode=EDX-100-000001&transactionId=tx-1&transactionState=4")

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, testConfig.ReceiptPageURL+"?orderNumber=EDX-100", response.Header().Get("Location"))
	})

	t.Run("Pending state redirects to dashboard", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)

		response := f.get(t, "/payu/return?referenceCode=EDX-100-000001&transactionId=tx-1&transactionState=7")

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, testConfig.DashboardURL, response.Header().Get("Location"))
	})

	t.Run("Declined state redirects to error page", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)
		f.startedCheckout(t)

		response := f.get(t, "/payu/return?referenceCode=EDX-100-000001&transactionId=tx-1&transactionState=6")

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, testConfig.ErrorPageURL, response.Header().Get("Location"))
	})

	t.Run("Unknown reference redirects to error page", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := setup(t, ctrl)

		response := f.get(t, "/payu/return?referenceCode=EDX-999-000001&transactionState=4")

		assert.Equal(t, 303, response.Code)
		assert.Equal(t, testConfig.ErrorPageURL, response.Header().Get("Location"))
	})
}

type fixture struct {
	ctx            context.Context
	router         *mux.Router
	basketStore    mystore.Store[shop.Basket]
	orderStore     mystore.Store[ordering.Order]
	responseLog    responselog.Recorder
	accountFetcher *identity.MockAccountFetcher
	publisher      *mypublisher.MockPublisher
}

func setup(t *testing.T, ctrl *gomock.Controller) *fixture {
	c := context.TODO()

	basketStore, _, err := mystore.New[shop.Basket](c)
	assert.NoError(t, err)
	orderStore, _, err := mystore.New[ordering.Order](c)
	assert.NoError(t, err)
	recordStore, _, err := mystore.New[responselog.ProcessorResponseRecord](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	recordCount := 0
	uuider := myuuid.NewMockUUIDer(ctrl)
	uuider.EXPECT().Create().DoAndReturn(func() string {
		recordCount++
		return fmt.Sprintf("record-%d", recordCount)
	}).AnyTimes()

	responseLog := responselog.NewRecorder(recordStore, nower, uuider)
	accountFetcher := identity.NewMockAccountFetcher(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().CreateTopic(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	orderPlacer := ordering.NewWebService(orderStore, basketStore, nower, publisher)

	sut, err := NewWebService(testConfig, basketStore, responseLog, accountFetcher, orderPlacer, publisher)
	assert.NoError(t, err)

	router := mux.NewRouter()
	err = sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return &fixture{
		ctx:            c,
		router:         router,
		basketStore:    basketStore,
		orderStore:     orderStore,
		responseLog:    responseLog,
		accountFetcher: accountFetcher,
		publisher:      publisher,
	}
}

func (f *fixture) storeBasket(t *testing.T) {
	err := f.basketStore.Put(f.ctx, "basket-123", shop.Basket{
		UID:         "basket-123",
		OrderNumber: "EDX-100",
		State:       shop.BasketStateOpen,
		Currency:    "USD",
		Owner: shop.Buyer{
			Username: "john",
			Email:    "john@example.com",
		},
		Lines: []shop.Line{
			{
				ProductID:        "course-v1:CVR+SAC01+2019",
				Description:      "Course SAC01",
				Quantity:         1,
				UnitPriceExclTax: "45.00",
				UnitPriceInclTax: "50.00",
				Currency:         "USD",
			},
		},
	})
	assert.NoError(t, err)
}

// startedCheckout stores the basket and records the outbound request the
// confirmation handler needs for its reverse lookup
func (f *fixture) startedCheckout(t *testing.T) {
	f.storeBasket(t)
	_, err := f.responseLog.RecordRequest(f.ctx, ProcessorName, "EDX-100-000001", "basket-123", "amount=50.00")
	assert.NoError(t, err)
}

func (f *fixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	var body string
	if form != nil {
		body = form.Encode()
	}
	request, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	assert.NoError(t, err)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response := httptest.NewRecorder()
	f.router.ServeHTTP(response, request)

	return response
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodGet, path, nil)
	assert.NoError(t, err)

	response := httptest.NewRecorder()
	f.router.ServeHTTP(response, request)

	return response
}

func acceptedConfirmation() url.Values {
	return url.Values{
		"transaction_id":       {"tx-1"},
		"reference_sale":       {"EDX-100-000001"},
		"response_code_pol":    {"1"},
		"state_pol":            {"4"},
		"value":                {"50.00"},
		"currency":             {"USD"},
		"lapPaymentMethod":     {"VISA"},
		"response_message_pol": {"APPROVED"},
		"sign":                 {"2c969d56e6a778569996c55c7b5e3962"},
	}
}
