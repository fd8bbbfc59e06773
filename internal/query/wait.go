package query

import (
	"context"
	"time"

	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/zerrors"
)

// WaitForProjection implements spec.md §10's wait_for_projection:
// trigger the named projection to run immediately, then poll its
// current position until it reaches at least target or deadline
// elapses, giving callers read-your-writes after a command commits.
func (q *Queries) WaitForProjection(ctx context.Context, name, instanceID string, target eventstore.Position, deadline time.Duration) error {
	if q.manager == nil {
		return nil
	}
	q.manager.Trigger(name)

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		pos, err := q.manager.CurrentPosition(ctx, name, instanceID)
		if err != nil {
			return err
		}
		if pos.GreaterOrEqual(target) {
			return nil
		}
		select {
		case <-ctx.Done():
			return zerrors.ThrowDeadlineExceeded(ctx.Err(), "QUERY-Wait01", "Errors.Query.ProjectionTimeout")
		case <-ticker.C:
		}
	}
}
