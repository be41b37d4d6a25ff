package query

import (
	"time"

	"go.uber.org/zap"
)

// Options configures a Client. Fields are used as given; start from
// DefaultOptions and override what you need.
type Options struct {
	// StaleTime is how long fetched data counts as fresh.
	StaleTime time.Duration
	// GCTime is how long an entry without observers survives. Zero or
	// negative disables eviction.
	GCTime time.Duration
	// GCInterval is the collector tick. Derived from GCTime when zero.
	GCInterval time.Duration

	// Retry and MutationRetry bound the extra attempts after a failure.
	Retry         int
	MutationRetry int
	// RetryDelay is the first backoff step; each next one doubles, capped
	// at MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// ShouldRetry may declare an error final. Nil retries everything.
	ShouldRetry func(err error) bool

	// PersistMaxAge drops restored snapshots older than this. Zero keeps all.
	PersistMaxAge time.Duration

	Logger *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		StaleTime:     5 * time.Minute,
		GCTime:        10 * time.Minute,
		GCInterval:    time.Minute,
		Retry:         2,
		MutationRetry: 1,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
		PersistMaxAge: 24 * time.Hour,
	}
}

func (o Options) normalize() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = func(error) bool { return true }
	}
	if o.Retry < 0 {
		o.Retry = 0
	}
	if o.MutationRetry < 0 {
		o.MutationRetry = 0
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 30 * time.Second
	}
	if o.GCTime > 0 && o.GCInterval <= 0 {
		o.GCInterval = o.GCTime / 10
		if o.GCInterval < 10*time.Millisecond {
			o.GCInterval = 10 * time.Millisecond
		}
	}
	return o
}

// QueryOptions tunes a single observer.
type QueryOptions struct {
	// Disabled observers never trigger fetches; data arrives only through
	// prefetching, hydration or other observers.
	Disabled bool
	// RefetchInterval refetches periodically while the observer is subscribed.
	RefetchInterval time.Duration
}
