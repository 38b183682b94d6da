// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package costmodel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"axonflow/router/shared/types"
)

// PostgresStore mirrors learned cost records into PostgreSQL so offline
// analytics can consume them. The routing engine itself only reads the
// in-memory history; the table is write-mostly.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveCostRecord persists one historical cost record.
func (s *PostgresStore) SaveCostRecord(ctx context.Context, record types.HistoricalCostRecord) error {
	metaJSON, err := json.Marshal(record.RequestMeta)
	if err != nil {
		return fmt.Errorf("failed to marshal request meta: %w", err)
	}

	query := `
		INSERT INTO cost_records (
			user_id, provider, model, recorded_at,
			actual_cost, predicted_cost, tokens, request_meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.UserID,
		record.Provider,
		record.Model,
		record.Timestamp,
		record.ActualCost,
		record.PredictedCost,
		record.Tokens,
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save cost record: %w", err)
	}
	return nil
}

// RecentRecords loads the most recent records for a user, newest first.
// Used to warm the in-memory history after a restart.
func (s *PostgresStore) RecentRecords(ctx context.Context, userID string, limit int) ([]types.HistoricalCostRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT user_id, provider, model, recorded_at,
		       actual_cost, predicted_cost, tokens, request_meta
		FROM cost_records
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	defer rows.Close()

	var records []types.HistoricalCostRecord
	for rows.Next() {
		var record types.HistoricalCostRecord
		var recordedAt time.Time
		var metaJSON []byte

		if err := rows.Scan(
			&record.UserID,
			&record.Provider,
			&record.Model,
			&recordedAt,
			&record.ActualCost,
			&record.PredictedCost,
			&record.Tokens,
			&metaJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}
		record.Timestamp = recordedAt

		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &record.RequestMeta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal request meta: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cost records: %w", err)
	}
	return records, nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("store has no database handle")
	}
	return s.db.PingContext(ctx)
}
