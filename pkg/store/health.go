package store

import (
	"context"
	"time"
)

// HealthStatus reports Store connectivity and pool statistics, adapted from
// the teacher's database health check for the pgxpool stats shape.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    int64         `json:"responseTimeMs"`
	AcquiredConns   int32         `json:"acquiredConns"`
	IdleConns       int32         `json:"idleConns"`
	MaxConns        int32         `json:"maxConns"`
	NewConnsCount   int64         `json:"newConnsCount"`
	EmptyAcquireCnt int64         `json:"emptyAcquireCount"`
}

// Health checks Store connectivity and returns pool statistics.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	if err := c.pool.Ping(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stats := c.pool.Stat()

	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start).Milliseconds(),
		AcquiredConns:   stats.AcquiredConns(),
		IdleConns:       stats.IdleConns(),
		MaxConns:        stats.MaxConns(),
		NewConnsCount:   stats.NewConnsCount(),
		EmptyAcquireCnt: stats.EmptyAcquireCount(),
	}, nil
}
