package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/eventharness/pkg/models"
)

// runMetaAttrs is the JSON shape stored in store_items.attrs for a RunMeta
// row. observed_count lives in its own column (see migrations/0001) so the
// Collector can increment it without a read-modify-write.
type runMetaAttrs struct {
	ServiceName    string     `json:"serviceName"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	TimeoutAt      time.Time  `json:"timeoutAt"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	ReportLocation string     `json:"reportLocation,omitempty"`
}

// CreateRunMeta inserts the one RunMeta row for a new run. It fails with
// ErrAlreadyExists if the run ID was already seeded (spec §3 invariant 1).
func (c *Client) CreateRunMeta(ctx context.Context, m models.RunMeta) error {
	attrs := runMetaAttrs{
		ServiceName: m.ServiceName,
		Status:      string(m.Status),
		StartedAt:   m.StartedAt,
		TimeoutAt:   m.TimeoutAt,
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal run meta: %w", err)
	}

	tag, err := c.pool.Exec(ctx, `
		INSERT INTO store_items (partition_key, sort_key, item_type, attrs, observed_count)
		VALUES ($1, $2, 'run_meta', $3, 0)
		ON CONFLICT (partition_key, sort_key) DO NOTHING
	`, RunPartition(m.RunID), MetaSortKey, attrsJSON)
	if err != nil {
		return fmt.Errorf("failed to create run meta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetRunMeta fetches a run's RunMeta row.
func (c *Client) GetRunMeta(ctx context.Context, runID string) (models.RunMeta, error) {
	var attrsJSON []byte
	var observedCount int64

	err := c.pool.QueryRow(ctx, `
		SELECT attrs, observed_count FROM store_items
		WHERE partition_key = $1 AND sort_key = $2
	`, RunPartition(runID), MetaSortKey).Scan(&attrsJSON, &observedCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.RunMeta{}, ErrNotFound
		}
		return models.RunMeta{}, fmt.Errorf("failed to get run meta: %w", err)
	}

	var attrs runMetaAttrs
	if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
		return models.RunMeta{}, fmt.Errorf("failed to unmarshal run meta: %w", err)
	}

	return models.RunMeta{
		RunID:          runID,
		ServiceName:    attrs.ServiceName,
		Status:         models.RunStatus(attrs.Status),
		StartedAt:      attrs.StartedAt,
		TimeoutAt:      attrs.TimeoutAt,
		ObservedCount:  observedCount,
		VerifiedAt:     attrs.VerifiedAt,
		ReportLocation: attrs.ReportLocation,
	}, nil
}

// IncrementObservedCount bumps a run's observed-event counter by one and
// returns the new value, via a single UPDATE ... RETURNING so concurrent
// Collector invocations never lose an increment (spec §5 hazard 3, §9).
func (c *Client) IncrementObservedCount(ctx context.Context, runID string) (int64, error) {
	var newCount int64
	err := c.pool.QueryRow(ctx, `
		UPDATE store_items
		SET observed_count = observed_count + 1, updated_at = now()
		WHERE partition_key = $1 AND sort_key = $2
		RETURNING observed_count
	`, RunPartition(runID), MetaSortKey).Scan(&newCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment observed count: %w", err)
	}
	return newCount, nil
}

// TransitionStatus moves a run to newStatus, but only if it isn't already
// there — the WHERE clause makes repeated identical transitions no-ops
// instead of clobbering a concurrently-written VerifiedAt/ReportLocation
// (spec §5 hazard 2, §9's "status-mode self-healing" requirement).
// It reports whether the row actually changed.
func (c *Client) TransitionStatus(ctx context.Context, runID string, newStatus models.RunStatus) (bool, error) {
	tag, err := c.pool.Exec(ctx, `
		UPDATE store_items
		SET attrs = jsonb_set(attrs, '{status}', to_jsonb($2::text)), updated_at = now()
		WHERE partition_key = $1 AND sort_key = $3 AND attrs->>'status' != $2
	`, RunPartition(runID), string(newStatus), MetaSortKey)
	if err != nil {
		return false, fmt.Errorf("failed to transition run status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetVerified records the verify timestamp and final status together, used
// once by VerifierService.Verify to close out a run (spec §4.4 step 5).
func (c *Client) SetVerified(ctx context.Context, runID string, status models.RunStatus, verifiedAt time.Time) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE store_items
		SET attrs = jsonb_set(jsonb_set(attrs, '{status}', to_jsonb($2::text)), '{verifiedAt}', to_jsonb($3::timestamptz)),
		    updated_at = now()
		WHERE partition_key = $1 AND sort_key = $4
	`, RunPartition(runID), string(status), verifiedAt, MetaSortKey)
	if err != nil {
		return fmt.Errorf("failed to set run verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReportLocation records where the Report producer uploaded a run's
// report (spec §4.6).
func (c *Client) SetReportLocation(ctx context.Context, runID, location string) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE store_items
		SET attrs = jsonb_set(attrs, '{reportLocation}', to_jsonb($2::text)), updated_at = now()
		WHERE partition_key = $1 AND sort_key = $3
	`, RunPartition(runID), location, MetaSortKey)
	if err != nil {
		return fmt.Errorf("failed to set report location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
