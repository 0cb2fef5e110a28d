package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/eventharness/pkg/models"
)

// missingAttrs is the JSON shape stored in store_items.attrs for a
// MissingRecord row.
type missingAttrs struct {
	ExpectedEvent models.Expectation `json:"expectedEvent"`
	Status        string             `json:"status"`
	CheckedAt     time.Time          `json:"checkedAt"`
}

// PutMissingRecord upserts the record for an expectation that had no
// matching observation at verify time (spec §4.4 step 5, §5 hazard 4).
func (c *Client) PutMissingRecord(ctx context.Context, m models.MissingRecord) error {
	attrs := missingAttrs{
		ExpectedEvent: m.ExpectedEvent,
		Status:        m.Status,
		CheckedAt:     m.CheckedAt,
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal missing record: %w", err)
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO store_items (partition_key, sort_key, item_type, attrs)
		VALUES ($1, $2, 'missing_record', $3)
		ON CONFLICT (partition_key, sort_key) DO UPDATE SET attrs = EXCLUDED.attrs, updated_at = now()
	`, RunPartition(m.RunID), MissingSortKey(m.Index), attrsJSON)
	if err != nil {
		return fmt.Errorf("failed to put missing record: %w", err)
	}
	return nil
}

// ListMissingRecords range-scans every MissingRecord row under a run, in
// expectation-index order, for the verify response and report (spec §4.4,
// §4.6).
func (c *Client) ListMissingRecords(ctx context.Context, runID string) ([]models.MissingRecord, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT sort_key, attrs FROM store_items
		WHERE partition_key = $1 AND item_type = 'missing_record'
		ORDER BY sort_key ASC
	`, RunPartition(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to list missing records: %w", err)
	}
	defer rows.Close()

	var out []models.MissingRecord
	for rows.Next() {
		var sortKey string
		var attrsJSON []byte
		if err := rows.Scan(&sortKey, &attrsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan missing record row: %w", err)
		}

		var index int
		if _, err := fmt.Sscanf(sortKey, "expectation#%d-missing", &index); err != nil {
			return nil, fmt.Errorf("failed to parse missing record sort key %q: %w", sortKey, err)
		}

		var attrs missingAttrs
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing record: %w", err)
		}

		out = append(out, models.MissingRecord{
			RunID:         runID,
			Index:         index,
			ExpectedEvent: attrs.ExpectedEvent,
			Status:        attrs.Status,
			CheckedAt:     attrs.CheckedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate missing records: %w", err)
	}
	return out, nil
}

// DeleteMissingRecords clears a run's MissingRecord rows, used when a
// re-verify supersedes a prior verify's findings (spec §4.4's "idempotent
// re-run" requirement).
func (c *Client) DeleteMissingRecords(ctx context.Context, runID string) error {
	_, err := c.pool.Exec(ctx, `
		DELETE FROM store_items WHERE partition_key = $1 AND item_type = 'missing_record'
	`, RunPartition(runID))
	if err != nil {
		return fmt.Errorf("failed to delete missing records: %w", err)
	}
	return nil
}
