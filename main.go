package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/paymentbackend/lib/mypublisher"
	"github.com/MarcGrol/paymentbackend/lib/mypubsub"
	"github.com/MarcGrol/paymentbackend/lib/myqueue"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/lib/myuuid"
	"github.com/MarcGrol/paymentbackend/services/checkoutpayu"
	"github.com/MarcGrol/paymentbackend/services/identity"
	"github.com/MarcGrol/paymentbackend/services/ordering"
	"github.com/MarcGrol/paymentbackend/services/responselog"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

func main() {
	c := context.Background()

	router := mux.NewRouter()

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	basketStore, basketStoreCleanup, err := mystore.New[shop.Basket](c)
	if err != nil {
		log.Fatalf("Error creating basket store: %s", err)
	}
	defer basketStoreCleanup()

	basketService, err := shop.NewWebService(getenvOrDefault("ORDER_NUMBER_PREFIX", "EDX"), basketStore, nower, uuider)
	if err != nil {
		log.Fatalf("Error creating basket service: %s", err)
	}
	basketService.RegisterEndpoints(c, router)

	orderStore, orderStoreCleanup, err := mystore.New[ordering.Order](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}
	defer orderStoreCleanup()

	orderService := ordering.NewWebService(orderStore, basketStore, nower, publisher)
	orderService.RegisterEndpoints(c, router)

	recordStore, recordStoreCleanup, err := mystore.New[responselog.ProcessorResponseRecord](c)
	if err != nil {
		log.Fatalf("Error creating response-log store: %s", err)
	}
	defer recordStoreCleanup()
	responseLog := responselog.NewRecorder(recordStore, nower, uuider)

	accountFetcher := identity.NewAccountClient(identity.Config{
		BaseURL: os.Getenv("ACCOUNTS_BASE_URL"),
		Timeout: 10 * time.Second,
	})

	payuService, err := checkoutpayu.NewWebService(payuConfigFromEnv(), basketStore, responseLog, accountFetcher, orderService, publisher)
	if err != nil {
		log.Fatalf("Error creating payu checkout service: %s", err)
	}
	err = payuService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering payu checkout service: %s", err)
	}

	startWebServerBlocking(router)
}

func payuConfigFromEnv() checkoutpayu.Config {
	return checkoutpayu.Config{
		PaymentPageURL:    os.Getenv("PAYU_PAYMENT_PAGE_URL"),
		MerchantID:        os.Getenv("PAYU_MERCHANT_ID"),
		AccountID:         os.Getenv("PAYU_ACCOUNT_ID"),
		APIKey:            os.Getenv("PAYU_API_KEY"),
		Tax:               getenvOrDefault("PAYU_TAX", "0"),
		TaxReturnBase:     getenvOrDefault("PAYU_TAX_RETURN_BASE", "0"),
		DescriptionPrefix: os.Getenv("PAYU_DESCRIPTION_PREFIX"),
		TestMode:          os.Getenv("PAYU_TEST_MODE") != "",
		ReturnURL:         os.Getenv("PAYU_RETURN_URL"),
		ConfirmationURL:   os.Getenv("PAYU_CONFIRMATION_URL"),
		ReceiptPageURL:    os.Getenv("RECEIPT_PAGE_URL"),
		DashboardURL:      os.Getenv("DASHBOARD_URL"),
		ErrorPageURL:      os.Getenv("ERROR_PAGE_URL"),
	}
}

func getenvOrDefault(name string, defaultValue string) string {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue
	}

	return value
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
