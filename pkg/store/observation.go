package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/eventharness/pkg/models"
)

// observationAttrs is the JSON shape stored in store_items.attrs for an
// Observation row.
type observationAttrs struct {
	EventID                 string     `json:"eventId"`
	DetailType              string     `json:"detailType"`
	Source                  string     `json:"source"`
	ReceivedAt              time.Time  `json:"receivedAt"`
	PayloadHash             string     `json:"payloadHash"`
	ArchiveKey              string     `json:"archiveKey,omitempty"`
	Status                  string     `json:"status"`
	VerifiedAt              *time.Time `json:"verifiedAt,omitempty"`
	MatchedExpectationIndex *int       `json:"matchedExpectationIndex,omitempty"`
}

// PutObservation inserts or updates a run's Observation row for one event
// arrival. The upsert makes a repeated write under the same sort key (same
// arrival millisecond and eventID) idempotent; a redelivery that arrives
// later has a different sort key and gets its own row (spec §5).
func (c *Client) PutObservation(ctx context.Context, o models.Observation) error {
	attrs := observationAttrs{
		EventID:                 o.EventID,
		DetailType:              o.DetailType,
		Source:                  o.Source,
		ReceivedAt:              o.ReceivedAt,
		PayloadHash:             o.PayloadHash,
		ArchiveKey:              o.ArchiveKey,
		Status:                  string(o.Status),
		VerifiedAt:              o.VerifiedAt,
		MatchedExpectationIndex: o.MatchedExpectationIndex,
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	sortKey := o.SortKey
	if sortKey == "" {
		sortKey = ObservationSortKey(strconv.FormatInt(o.ReceivedAt.UnixMilli(), 10), o.EventID)
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO store_items (partition_key, sort_key, item_type, attrs)
		VALUES ($1, $2, 'observation', $3)
		ON CONFLICT (partition_key, sort_key) DO UPDATE SET attrs = EXCLUDED.attrs, updated_at = now()
	`, RunPartition(o.RunID), sortKey, attrsJSON)
	if err != nil {
		return fmt.Errorf("failed to put observation: %w", err)
	}
	return nil
}

// ListObservationsByRun range-scans every Observation row under a run, in
// arrival order (spec §4.3 step 3, §4.4 step 2).
func (c *Client) ListObservationsByRun(ctx context.Context, runID string) ([]models.Observation, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT sort_key, attrs FROM store_items
		WHERE partition_key = $1 AND item_type = 'observation'
		ORDER BY sort_key ASC
	`, RunPartition(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows, runID)
}

// ListObservationsByDetailTypeSource filters a run's observations to those
// matching a candidate source/detail-type pair, the first coarse filter the
// Verifier applies before dot-path matching (spec §4.4 step 3).
func (c *Client) ListObservationsByDetailTypeSource(ctx context.Context, runID, source, detailType string) ([]models.Observation, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT sort_key, attrs FROM store_items
		WHERE partition_key = $1 AND item_type = 'observation'
		  AND attrs->>'source' = $2 AND attrs->>'detailType' = $3
		ORDER BY sort_key ASC
	`, RunPartition(runID), source, detailType)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations by detail-type/source: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows, runID)
}

func scanObservations(rows pgx.Rows, runID string) ([]models.Observation, error) {
	var out []models.Observation
	for rows.Next() {
		var sortKey string
		var attrsJSON []byte
		if err := rows.Scan(&sortKey, &attrsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}

		var attrs observationAttrs
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal observation: %w", err)
		}

		out = append(out, models.Observation{
			RunID:                   runID,
			EventID:                 attrs.EventID,
			DetailType:              attrs.DetailType,
			Source:                  attrs.Source,
			ReceivedAt:              attrs.ReceivedAt,
			PayloadHash:             attrs.PayloadHash,
			ArchiveKey:              attrs.ArchiveKey,
			Status:                  models.ObservationStatus(attrs.Status),
			VerifiedAt:              attrs.VerifiedAt,
			MatchedExpectationIndex: attrs.MatchedExpectationIndex,
			SortKey:                 sortKey,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}
	return out, nil
}

// MarkMatched records that an Observation satisfied expectation index idx,
// as of verifiedAt (spec §4.4 step 4).
func (c *Client) MarkMatched(ctx context.Context, runID, sortKey string, idx int, verifiedAt time.Time) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE store_items
		SET attrs = jsonb_set(jsonb_set(jsonb_set(attrs, '{status}', to_jsonb('matched'::text)),
		             '{verifiedAt}', to_jsonb($3::timestamptz)),
		             '{matchedExpectationIndex}', to_jsonb($4::int)),
		    updated_at = now()
		WHERE partition_key = $1 AND sort_key = $2
	`, RunPartition(runID), sortKey, verifiedAt, idx)
	if err != nil {
		return fmt.Errorf("failed to mark observation matched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkUnexpected records that an Observation matched no expectation
// (spec §4.4 step 4).
func (c *Client) MarkUnexpected(ctx context.Context, runID, sortKey string, verifiedAt time.Time) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE store_items
		SET attrs = jsonb_set(jsonb_set(attrs, '{status}', to_jsonb('unexpected'::text)),
		             '{verifiedAt}', to_jsonb($3::timestamptz)),
		    updated_at = now()
		WHERE partition_key = $1 AND sort_key = $2
	`, RunPartition(runID), sortKey, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to mark observation unexpected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
