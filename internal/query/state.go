package query

import "time"

type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

type FetchStatus int

const (
	FetchIdle FetchStatus = iota
	FetchFetching
)

func (s FetchStatus) String() string {
	if s == FetchFetching {
		return "fetching"
	}
	return "idle"
}

// State is a point-in-time copy of a cache entry.
type State struct {
	Key            Key
	Status         Status
	FetchStatus    FetchStatus
	Data           any
	Err            error
	FailureCount   int
	UpdatedAt      time.Time
	ErrorUpdatedAt time.Time
	IsInvalidated  bool

	version uint64
}

// HasData reports whether a fetch (or hydration) has ever succeeded.
func (s State) HasData() bool {
	return !s.UpdatedAt.IsZero()
}

// IsLoading is true only while the first fetch runs and no data exists yet.
func (s State) IsLoading() bool {
	return s.FetchStatus == FetchFetching && !s.HasData()
}

func (s State) IsFetching() bool {
	return s.FetchStatus == FetchFetching
}

// IsStale reports whether the data must be refetched on next access.
func (s State) IsStale(now time.Time, staleTime time.Duration) bool {
	if s.Status != StatusSuccess || s.IsInvalidated {
		return true
	}
	return now.Sub(s.UpdatedAt) >= staleTime
}
