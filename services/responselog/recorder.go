package responselog

import (
	"context"
	"fmt"

	"github.com/MarcGrol/paymentbackend/lib/mylog"
	"github.com/MarcGrol/paymentbackend/lib/mystore"
	"github.com/MarcGrol/paymentbackend/lib/mytime"
	"github.com/MarcGrol/paymentbackend/lib/myuuid"
)

type recorder struct {
	store  mystore.Store[ProcessorResponseRecord]
	nower  mytime.Nower
	uuider myuuid.UUIDer
	logger mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewRecorder(store mystore.Store[ProcessorResponseRecord], nower mytime.Nower, uuider myuuid.UUIDer) Recorder {
	return &recorder{
		store:  store,
		nower:  nower,
		uuider: uuider,
		logger: mylog.New("responselog"),
	}
}

func (r *recorder) RecordRequest(c context.Context, processorName string, paymentReference string, basketUID string, payload string) (string, error) {
	return r.append(c, ProcessorResponseRecord{
		ProcessorName:    processorName,
		Kind:             KindRequest,
		TransactionID:    paymentReference,
		PaymentReference: paymentReference,
		BasketUID:        basketUID,
		Payload:          payload,
	})
}

func (r *recorder) RecordNotification(c context.Context, processorName string, transactionID string, paymentReference string, basketUID string, payload string) (string, error) {
	return r.append(c, ProcessorResponseRecord{
		ProcessorName:    processorName,
		Kind:             KindNotification,
		TransactionID:    transactionID,
		PaymentReference: paymentReference,
		BasketUID:        basketUID,
		Payload:          payload,
	})
}

func (r *recorder) append(c context.Context, record ProcessorResponseRecord) (string, error) {
	record.UID = r.uuider.Create()
	record.CreatedAt = r.nower.Now()

	err := r.store.Put(c, record.UID, record)
	if err != nil {
		return "", fmt.Errorf("error appending %s record for transaction %s: %s", record.Kind, record.TransactionID, err)
	}

	r.logger.Log(c, record.BasketUID, mylog.SeverityInfo, "Recorded %s %s for transaction %s", record.ProcessorName, record.Kind, record.TransactionID)

	return record.UID, nil
}

func (r *recorder) FindBasketByReference(c context.Context, processorName string, paymentReference string) (string, error) {
	records, err := r.store.Query(c, []mystore.Filter{
		{Field: "ProcessorName", Compare: "=", Value: processorName},
		{Field: "PaymentReference", Compare: "=", Value: paymentReference},
		{Field: "Kind", Compare: "=", Value: KindRequest},
	}, "CreatedAt")
	if err != nil {
		return "", fmt.Errorf("error querying records on reference %s: %s", paymentReference, err)
	}

	if len(records) == 0 {
		return "", ErrUnknownBasket
	}
	if len(records) > 1 {
		return "", ErrAmbiguousBasket
	}

	return records[0].BasketUID, nil
}

func (r *recorder) CountRequests(c context.Context, processorName string, basketUID string) (int, error) {
	records, err := r.store.Query(c, []mystore.Filter{
		{Field: "ProcessorName", Compare: "=", Value: processorName},
		{Field: "BasketUID", Compare: "=", Value: basketUID},
		{Field: "Kind", Compare: "=", Value: KindRequest},
	}, "CreatedAt")
	if err != nil {
		return 0, fmt.Errorf("error querying records on basket %s: %s", basketUID, err)
	}

	return len(records), nil
}

func (r *recorder) ListByTransactionID(c context.Context, processorName string, transactionID string) ([]ProcessorResponseRecord, error) {
	records, err := r.store.Query(c, []mystore.Filter{
		{Field: "ProcessorName", Compare: "=", Value: processorName},
		{Field: "TransactionID", Compare: "=", Value: transactionID},
	}, "CreatedAt")
	if err != nil {
		return nil, fmt.Errorf("error querying records on transaction %s: %s", transactionID, err)
	}

	return records, nil
}
