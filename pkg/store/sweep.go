package store

import (
	"context"
	"fmt"
	"time"
)

// DeleteExpiredRuns removes every row (RunMeta, Observation, MissingRecord)
// belonging to runs whose timeoutAt is older than cutoff, enforcing the
// Store-level TTL named in spec §3 ("Lives until TTL expiry, typically 2x
// timeout") — callers pass `now.Add(-2*RunTimeout)` as cutoff. It returns
// the number of rows removed across all expired runs.
func (c *Client) DeleteExpiredRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := c.pool.Exec(ctx, `
		DELETE FROM store_items
		WHERE partition_key IN (
			SELECT partition_key FROM store_items
			WHERE sort_key = $1 AND (attrs->>'timeoutAt')::timestamptz < $2
		)
	`, MetaSortKey, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
