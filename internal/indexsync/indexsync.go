// Package indexsync makes sure every model's declared indexes exist, one
// collection at a time, optionally coordinated across processes through
// indexlock.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/mongomodel/internal/indexlock"
	"github.com/gogotex/mongomodel/pkg/logger"
	"github.com/gogotex/mongomodel/pkg/metrics"
	"github.com/gogotex/mongomodel/pkg/model"
)

// Outcomes recorded in metrics.IndexSyncTotal besides the error kinds.
const (
	OutcomeOK       = "ok"
	OutcomeSkipped  = "skipped"
	OutcomeConflict = "conflict"
)

// Target is a collection with declared indexes. *model.Model satisfies it.
type Target interface {
	CollectionName() string
	CreateIndexes(ctx context.Context) error
}

// Result is the outcome for one collection.
type Result struct {
	Collection string
	Outcome    string
	Duration   time.Duration
	Err        error
}

// Run synchronizes every target and returns all failures joined. A nil
// locker disables cross-process coordination. A collection whose lock is
// held elsewhere is skipped. When the lock backend itself fails the
// collection is synchronized without the lock, since creating indexes is
// idempotent.
func Run(ctx context.Context, locker indexlock.Locker, targets ...Target) error {
	_, err := Report(ctx, locker, targets...)
	return err
}

// Report is Run that also returns the per-collection results in target order.
func Report(ctx context.Context, locker indexlock.Locker, targets ...Target) ([]Result, error) {
	results := make([]Result, 0, len(targets))
	var errs []error
	for _, t := range targets {
		name := t.CollectionName()
		start := time.Now()
		outcome, err := syncOne(ctx, locker, t)
		metrics.IndexSyncTotal.WithLabelValues(name, outcome).Inc()
		results = append(results, Result{Collection: name, Outcome: outcome, Duration: time.Since(start), Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Errorf("index sync finished with %d failure(s): %v", len(errs), err)
		return results, err
	}
	logger.Infof("index sync finished for %d collection(s)", len(targets))
	return results, nil
}

func syncOne(ctx context.Context, locker indexlock.Locker, t Target) (string, error) {
	name := t.CollectionName()
	if locker != nil {
		lock, err := locker.Acquire(ctx, name)
		switch {
		case errors.Is(err, indexlock.ErrNotAcquired):
			logger.Infof("indexes for %q are being synchronized elsewhere; skipping", name)
			return OutcomeSkipped, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return model.KindConnectionFailure.String(), err
		case err != nil:
			logger.Warnf("index lock for %q unavailable, continuing without it: %v", name, err)
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					logger.Warnf("releasing index lock %s: %v", lock.Key(), err)
				}
			}()
		}
	}

	if err := t.CreateIndexes(ctx); err != nil {
		if errors.Is(err, model.ErrIndexConflict) {
			return OutcomeConflict, err
		}
		return model.KindOf(err).String(), err
	}
	logger.Debugf("indexes for %q are in place", name)
	return OutcomeOK, nil
}
