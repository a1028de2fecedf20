package domain

import (
	"context"
	"iter"
	"time"
)

// SiteAdapter is the portal-specific capability driven by the orchestrator.
// One adapter holds one browsing session; it is not safe for concurrent use.
type SiteAdapter interface {
	Name() string
	Login(ctx context.Context, creds Credentials) error
	// ListOpportunities yields a finite, one-shot sequence of opportunities.
	ListOpportunities(ctx context.Context) iter.Seq2[Opportunity, error]
	SubmitOffer(ctx context.Context, offer Offer) error
	// SingleOfferPerTender reports whether the offer form accepts only one line item.
	SingleOfferPerTender() bool
	Close() error
}

// SubmissionLog is the append-only sink recording every submission
type SubmissionLog interface {
	Append(ctx context.Context, record SubmissionRecord) error
}

// SubmissionLedger remembers submitted offers to avoid duplicate bids.
// It is a cache, not the durable record.
type SubmissionLedger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// CatalogLoader loads a price list from local storage
type CatalogLoader interface {
	Load(path string) (*Catalog, error)
}

// RunMetrics receives orchestrator events for monitoring
type RunMetrics interface {
	OpportunityScanned(portal string)
	SubmissionOutcome(portal, outcome string)
	RunFinished(portal string, state RunState, duration time.Duration)
}
