package responselog

import (
	"net/url"
	"time"
)

type RecordKind string

const (
	// KindRequest marks the outbound parameter set sent to the gateway
	KindRequest RecordKind = "request"
	// KindNotification marks an inbound callback or server-to-server confirmation
	KindNotification RecordKind = "notification"
)

// ProcessorResponseRecord is one entry of the append-only audit log. Records
// are never updated or deleted: the outbound record is what allows an inbound
// notification to be traced back to its basket, and the append-only property
// is what makes replayed notifications detectable.
type ProcessorResponseRecord struct {
	UID              string
	ProcessorName    string
	Kind             RecordKind
	TransactionID    string
	PaymentReference string
	BasketUID        string
	Payload          string `datastore:",noindex"`
	CreatedAt        time.Time
}

func (r ProcessorResponseRecord) PayloadValues() url.Values {
	values, err := url.ParseQuery(r.Payload)
	if err != nil {
		return url.Values{}
	}

	return values
}
