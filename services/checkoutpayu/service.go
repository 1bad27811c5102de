package checkoutpayu

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MarcGrol/paymentbackend/lib/myerrors"
	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mypublisher"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/services/identity"
	"github.com/MarcGrol/paymentbackend/services/ordering"
	"github.com/MarcGrol/paymentbackend/services/paymentevents"
	"github.com/MarcGrol/paymentbackend/services/responselog"
	"github.com/MarcGrol/paymentbackend/services/shop"
)

const (
	descriptionSeparator = " | "
	courseIDSplits       = 1
)

type service struct {
	config         Config
	signer         signer
	basketStore    mystore.Store[shop.Basket]
	responseLog    responselog.Recorder
	accountFetcher identity.AccountFetcher
	orderPlacer    OrderPlacer
	publisher      mypublisher.Publisher
	logger         mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(config Config, basketStore mystore.Store[shop.Basket], responseLog responselog.Recorder, accountFetcher identity.AccountFetcher, orderPlacer OrderPlacer, publisher mypublisher.Publisher, logger mylog.Logger) *service {
	return &service{
		config:         config,
		signer:         newSigner(config.APIKey, config.MerchantID),
		basketStore:    basketStore,
		responseLog:    responseLog,
		accountFetcher: accountFetcher,
		orderPlacer:    orderPlacer,
		publisher:      publisher,
		logger:         logger,
	}
}

// startCheckout assembles the signed parameter set the hosted payment page
// requires. Every call is recorded in the response log: that record is the
// only way an inbound notification can be traced back to its basket.
func (s *service) startCheckout(c context.Context, basketUID string, hostname string) (CheckoutPage, error) {
	s.logger.Log(c, basketUID, mylog.SeverityInfo, "Start checkout for basket %s", basketUID)

	basket, found, err := s.basketStore.Get(c, basketUID)
	if err != nil {
		return CheckoutPage{}, myerrors.NewInternalError(fmt.Errorf("error fetching basket %s: %s", basketUID, err))
	}
	if !found {
		return CheckoutPage{}, myerrors.NewNotFoundError(fmt.Errorf("basket with uid %s not found", basketUID))
	}
	err = basket.Validate()
	if err != nil {
		return CheckoutPage{}, myerrors.NewInvalidInputError(err)
	}

	reference, err := s.composeReference(c, basket)
	if err != nil {
		return CheckoutPage{}, myerrors.NewInternalError(fmt.Errorf("error composing payment reference: %s", err))
	}

	amount := basket.TotalInclTax().StringFixed(2)
	params := url.Values{}
	params.Set("merchantId", s.config.MerchantID)
	params.Set("accountId", s.config.AccountID)
	params.Set("referenceCode", reference)
	params.Set("amount", amount)
	params.Set("tax", s.config.Tax)
	params.Set("taxReturnBase", s.config.TaxReturnBase)
	params.Set("currency", basket.Currency)
	params.Set("buyerEmail", basket.Owner.Email)
	params.Set("responseUrl", urlOrDefault(s.config.ReturnURL, hostname+"/payu/return"))
	params.Set("confirmationUrl", urlOrDefault(s.config.ConfirmationURL, hostname+"/payu/confirmation"))

	if description := composeDescription(basket); description != "" {
		params.Set("description", strings.TrimSpace(s.config.DescriptionPrefix+" "+description))
	}
	if basket.AllowedBin != "" {
		params.Set("allowedBin", basket.AllowedBin)
	}
	if s.config.TestMode {
		params.Set("test", "1")
	}

	s.enrichWithAccountDetails(c, basket, params)

	// the signature covers the final parameter set, so it is computed last
	params.Set("signature", s.signer.Sign(paymentFormSignature, params))

	_, err = s.responseLog.RecordRequest(c, ProcessorName, reference, basket.UID, params.Encode())
	if err != nil {
		return CheckoutPage{}, myerrors.NewInternalError(fmt.Errorf("error recording outbound request: %s", err))
	}

	err = s.publisher.Publish(c, paymentevents.TopicName, paymentevents.PaymentRequested{
		ProviderName: ProcessorName,
		BasketUID:    basket.UID,
		OrderNumber:  basket.OrderNumber,
		Reference:    reference,
		Amount:       amount,
		Currency:     basket.Currency,
		BuyerEmail:   basket.Owner.Email,
	})
	if err != nil {
		return CheckoutPage{}, myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
	}

	return CheckoutPage{
		BasketUID:      basket.UID,
		PaymentPageURL: s.config.PaymentPageURL,
		Parameters:     params,
	}, nil
}

func urlOrDefault(configured string, derived string) string {
	if configured != "" {
		return configured
	}

	return derived
}

// composeReference derives the processor-facing reference code: the order
// number plus an explicit attempt counter. The encoding is reversible (the
// full reference is recorded and looked up verbatim) and collision-free
// across retried checkouts, unlike a time-of-day suffix.
func (s *service) composeReference(c context.Context, basket shop.Basket) (string, error) {
	attempts, err := s.responseLog.CountRequests(c, ProcessorName, basket.UID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%06d", basket.OrderNumber, attempts+1), nil
}

// composeDescription extracts the run segment of each composite course
// identifier. "course-v1:CVR+SAC01+2019" contributes "SAC01+2019".
func composeDescription(basket shop.Basket) string {
	segments := []string{}
	for _, line := range basket.Lines {
		parts := strings.SplitN(line.ProductID, "+", courseIDSplits+1)
		if len(parts) < 2 {
			continue
		}
		segments = append(segments, parts[1])
	}

	return strings.Join(segments, descriptionSeparator)
}

// enrichWithAccountDetails adds the optional buyer document id and full name.
// Any failure of the accounts service is logged and swallowed: checkout
// availability matters more than fully-populated optional fields.
func (s *service) enrichWithAccountDetails(c context.Context, basket shop.Basket, params url.Values) {
	if basket.Owner.FullName != "" {
		params.Set("buyerFullName", basket.Owner.FullName)
	}

	enrichment, err := s.accountFetcher.AccountDetails(c, basket.Owner.Username)
	if err != nil {
		s.logger.Log(c, basket.UID, mylog.SeverityWarn, "Error fetching account details for %s: %s", basket.Owner.Username, err)
		return
	}

	if enrichment.DocumentID != "" {
		params.Set("payerDocument", enrichment.DocumentID)
	}
	if enrichment.FullName != "" {
		params.Set("buyerFullName", enrichment.FullName)
	}
}

// finalizeCheckout handles the buyer returning in their browser. The browser
// redirect carries no authority: it only decides where to send the buyer,
// reconciliation is driven by the server-to-server confirmation.
func (s *service) finalizeCheckout(c context.Context, params url.Values) string {
	reference := params.Get("referenceCode")
	transactionState := params.Get("transactionState")
	s.logger.Log(c, reference, mylog.SeverityInfo, "Checkout returned for reference %s with state %s", reference, transactionState)

	basketUID, err := s.responseLog.FindBasketByReference(c, ProcessorName, reference)
	if err != nil {
		s.logger.Log(c, reference, mylog.SeverityWarn, "Error resolving basket for reference %s: %s", reference, err)
		return s.config.ErrorPageURL
	}

	basket, found, err := s.basketStore.Get(c, basketUID)
	if err != nil || !found {
		s.logger.Log(c, basketUID, mylog.SeverityWarn, "Error fetching basket %s on checkout return", basketUID)
		return s.config.ErrorPageURL
	}

	switch classifyTransactionState(transactionState) {
	case paymentevents.PaymentStatusAccepted:
		return fmt.Sprintf("%s?orderNumber=%s", s.config.ReceiptPageURL, url.QueryEscape(basket.OrderNumber))
	case paymentevents.PaymentStatusPending:
		return s.config.DashboardURL
	default:
		return s.config.ErrorPageURL
	}
}

// handleConfirmation processes a server-to-server notification. The raw
// payload is appended to the response log before anything else: the audit
// trail must be complete even for forged or unresolvable notifications.
func (s *service) handleConfirmation(c context.Context, params url.Values) error {
	transactionID := params.Get("transaction_id")
	reference := params.Get("reference_sale")
	s.logger.Log(c, reference, mylog.SeverityInfo, "Confirmation for reference %s (transaction %s)", reference, transactionID)

	basketUID, lookupErr := s.responseLog.FindBasketByReference(c, ProcessorName, reference)

	_, err := s.responseLog.RecordNotification(c, ProcessorName, transactionID, reference, basketUID, params.Encode())
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error recording notification: %s", err))
	}

	if !s.signer.Verify(confirmationSignature, params, params.Get("sign")) {
		return myerrors.NewAuthenticationError(fmt.Errorf("%w: transaction %s", ErrInvalidSignature, transactionID))
	}

	if lookupErr != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error resolving basket for reference %s: %w", reference, lookupErr))
	}

	basket, found, err := s.basketStore.Get(c, basketUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching basket %s: %s", basketUID, err))
	}
	if !found {
		return myerrors.NewInvalidInputError(fmt.Errorf("basket with uid %s not found", basketUID))
	}

	outcome := TransactionOutcome{
		Status:          classifyTransactionState(params.Get("state_pol")),
		TransactionID:   transactionID,
		Reference:       reference,
		Amount:          params.Get("value"),
		Currency:        params.Get("currency"),
		InstrumentLabel: instrumentLabel(params.Get("lapPaymentMethod"), params.Get("cc_number")),
	}

	err = s.reconcile(c, basket, outcome)

	publishErr := s.publisher.Publish(c, paymentevents.TopicName, paymentevents.PaymentCompleted{
		ProviderName:  ProcessorName,
		BasketUID:     basket.UID,
		OrderNumber:   basket.OrderNumber,
		TransactionID: transactionID,
		Status:        outcome.Status,
		StatusDetails: params.Get("response_message_pol"),
		Amount:        outcome.Amount,
		Currency:      outcome.Currency,
		PaymentMethod: outcome.InstrumentLabel,
	})
	if publishErr != nil {
		s.logger.Log(c, basket.UID, mylog.SeverityWarn, "Error publishing event: %s", publishErr)
	}

	return err
}

// reconcile acts on the validated outcome. Only an accepted payment places
// an order; declines and errors are acknowledged without touching the
// ledger. A pending state waits for the gateway's next notification.
func (s *service) reconcile(c context.Context, basket shop.Basket, outcome TransactionOutcome) error {
	switch outcome.Status {
	case paymentevents.PaymentStatusAccepted:
		amount, err := decimal.NewFromString(outcome.Amount)
		if err != nil {
			return myerrors.NewInvalidInputError(fmt.Errorf("error parsing settled value %q: %s", outcome.Amount, err))
		}

		_, _, err = s.orderPlacer.PlaceOrder(c, basket, ordering.PaymentDetail{
			ProcessorName: ProcessorName,
			TransactionID: outcome.TransactionID,
			Amount:        amount,
			Currency:      outcome.Currency,
			Label:         s.composeSourceLabel(basket),
		})
		if err != nil {
			return myerrors.NewInvalidInputError(fmt.Errorf("error placing order %s: %s", basket.OrderNumber, err))
		}

		return nil

	case paymentevents.PaymentStatusDeclined:
		s.logger.Log(c, basket.UID, mylog.SeverityInfo, "Payment for order %s declined by gateway", basket.OrderNumber)
		return nil

	case paymentevents.PaymentStatusPending:
		s.logger.Log(c, basket.UID, mylog.SeverityInfo, "Payment for order %s still pending", basket.OrderNumber)
		return nil

	default:
		// gateway-side error or protocol drift: acknowledged, never treated as success
		s.logger.Log(c, basket.UID, mylog.SeverityWarn, "Payment for order %s reported gateway state %q", basket.OrderNumber, outcome.Status)
		return nil
	}
}

func (s *service) composeSourceLabel(basket shop.Basket) string {
	if basket.Owner.Email != "" {
		return fmt.Sprintf("PayU (%s)", basket.Owner.Email)
	}

	return "PayU Account"
}

// issueCredit would refund via the gateway's refund API, which this
// processor integration does not speak yet.
func (s *service) issueCredit(c context.Context, orderNumber string) error {
	return myerrors.NewNotImplementedError(fmt.Errorf("processor %s cannot issue credits or refunds for order %s", ProcessorName, orderNumber))
}
