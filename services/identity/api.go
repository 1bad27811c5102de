package identity

import (
	"context"
	"time"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Enrichment carries the optional buyer fields fetched from the external
// accounts service. The checkout must be able to proceed without them.
type Enrichment struct {
	DocumentID string
	FullName   string
}

//go:generate mockgen -source=api.go -package identity -destination fetcher_mock.go AccountFetcher
type AccountFetcher interface {
	AccountDetails(c context.Context, username string) (Enrichment, error)
}
