// Package gather defines the contract shared by the data gathering jobs that
// populate the bar stores.
package gather

import (
	"context"
	"fmt"
	"time"

	"stockview/internal/util"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// DateRange represents an inclusive time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses YYYY-MM-DD bounds. An empty end leaves End zero so
// the caller can resolve it later.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if start == "" {
		return r, fmt.Errorf("start date required")
	}
	if r.Start, err = util.ParseDate(start); err != nil {
		return r, fmt.Errorf("parsing start date %q: %w", start, err)
	}
	if r.End, err = util.ParseDate(end); err != nil {
		return r, fmt.Errorf("parsing end date %q: %w", end, err)
	}
	if !r.End.IsZero() && r.End.Before(r.Start) {
		return r, fmt.Errorf("end date %s before start date %s", end, start)
	}
	return r, nil
}
