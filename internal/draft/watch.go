package draft

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// EstimateError carries the message list a failed estimate call returned.
// The watcher surfaces only the first message.
type EstimateError struct {
	Messages []string
}

func (e *EstimateError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// EstimateFunc requests a delivery/installation estimate for a postcode and
// total installation hours.
type EstimateFunc func(ctx context.Context, postcode string, hours decimal.Decimal) (Estimate, error)

// EstimateWatcher keeps an estimate synchronized with the draft's postcode and
// installation hours. Each Update bumps a generation counter captured by the
// dispatched fetch; a response whose generation is no longer current is
// discarded silently, so a later request always wins over an earlier one that
// resolves out of order.
type EstimateWatcher struct {
	fetch EstimateFunc

	mu         sync.Mutex
	generation uint64
	estimate   *Estimate
	errMsg     string
}

func NewEstimateWatcher(fetch EstimateFunc) *EstimateWatcher {
	return &EstimateWatcher{fetch: fetch}
}

// Update reacts to a change of postcode or hours. When either input is missing
// or hours are not positive, any existing estimate and error are cleared and
// no request is made. Otherwise a fetch is dispatched on its own goroutine.
// The returned channel closes when this update has settled (applied, discarded
// or skipped); callers that do not care can ignore it.
func (w *EstimateWatcher) Update(ctx context.Context, postcode string, hours decimal.Decimal) <-chan struct{} {
	done := make(chan struct{})

	w.mu.Lock()
	w.generation++
	gen := w.generation
	if postcode == "" || !hours.IsPositive() {
		w.estimate = nil
		w.errMsg = ""
		w.mu.Unlock()
		close(done)
		return done
	}
	w.mu.Unlock()

	go func() {
		defer close(done)
		est, err := w.fetch(ctx, postcode, hours)

		w.mu.Lock()
		defer w.mu.Unlock()
		if gen != w.generation {
			// A newer update was dispatched while this one was in flight.
			return
		}
		if err != nil {
			var apiErr *EstimateError
			if errors.As(err, &apiErr) && len(apiErr.Messages) > 0 {
				w.errMsg = apiErr.Messages[0]
			} else {
				w.errMsg = err.Error()
			}
			return
		}
		w.estimate = &est
		w.errMsg = ""
	}()
	return done
}

// Current returns a copy of the latest applied estimate (nil when absent) and
// the current error message ("" when none).
func (w *EstimateWatcher) Current() (*Estimate, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.estimate == nil {
		return nil, w.errMsg
	}
	est := *w.estimate
	return &est, w.errMsg
}
