package analysis

import (
	"context"
	"fmt"

	"github.com/Veraticus/cardwise/internal/common"
)

// runGuard is a single-slot lock. Runs fail fast when it is held; ingestion
// waits for it.
type runGuard chan struct{}

func newRunGuard() runGuard {
	return make(runGuard, 1)
}

func (g runGuard) tryAcquire() error {
	select {
	case g <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("cannot start analysis: %w", common.ErrAnalysisInProgress)
	}
}

func (g runGuard) acquire(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g runGuard) release() {
	<-g
}

// Busy reports whether an analysis or ingestion currently holds the guard.
func (s *Service) Busy() bool {
	return len(s.guard) > 0
}
