package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PredictionAudit is one served prediction or explanation, recorded
// asynchronously after the response is written.
type PredictionAudit struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Endpoint    string    `json:"endpoint"`
	InputHash   string    `json:"input_hash"`
	Prediction  int       `json:"prediction"`
	Probability float64   `json:"probability"`
	RiskLevel   string    `json:"risk_level"`
	DurationMS  int64     `json:"duration_ms"`
	CacheHit    bool      `json:"cache_hit"`
}

// Repository provides audit persistence
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveAudit records one served response
func (r *Repository) SaveAudit(ctx context.Context, audit PredictionAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO prediction_audits
			(id, created_at, endpoint, input_hash, prediction, probability, risk_level, duration_ms, cache_hit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.CreatedAt, audit.Endpoint, audit.InputHash,
		audit.Prediction, audit.Probability, audit.RiskLevel,
		audit.DurationMS, audit.CacheHit,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit: %w", err)
	}
	return nil
}

// RecentAudits returns the most recent audit records
func (r *Repository) RecentAudits(ctx context.Context, limit int) ([]PredictionAudit, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, endpoint, input_hash, prediction, probability, risk_level, duration_ms, cache_hit
		 FROM prediction_audits
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	var audits []PredictionAudit
	for rows.Next() {
		var a PredictionAudit
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Endpoint, &a.InputHash,
			&a.Prediction, &a.Probability, &a.RiskLevel, &a.DurationMS, &a.CacheHit); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// CountByRiskLevel returns served-response counts grouped by risk tier
func (r *Repository) CountByRiskLevel(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT risk_level, COUNT(*) FROM prediction_audits GROUP BY risk_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan risk count: %w", err)
		}
		counts[level] = count
	}
	return counts, rows.Err()
}
