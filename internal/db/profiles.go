package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonathan/speaking-coach/internal/profile"
	"github.com/jonathan/speaking-coach/internal/schemas"
	"github.com/jonathan/speaking-coach/internal/types"
)

var (
	_ profile.Store      = (*DB)(nil)
	_ profile.UserLocker = (*DB)(nil)
	_ profile.Store      = txStore{}
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txStore is the profile.Store view of one transaction.
type txStore struct {
	tx pgx.Tx
}

func (s txStore) GetProfile(ctx context.Context, userID string) (*types.SpeakingProfile, error) {
	return getProfile(ctx, s.tx, userID)
}

func (s txStore) SaveProfile(ctx context.Context, p *types.SpeakingProfile) error {
	return saveProfile(ctx, s.tx, p)
}

func (s txStore) AppendRecord(ctx context.Context, record types.PracticeRecord) error {
	return appendRecord(ctx, s.tx, record)
}

func (s txStore) ListRecords(ctx context.Context, userID string, limit int) ([]types.PracticeRecord, error) {
	return listRecords(ctx, s.tx, userID, limit)
}

// LockUser runs fn inside a transaction holding an advisory lock on userID.
// The lock is shared by every process using the database and is released
// when the transaction ends. fn's writes commit only when it returns nil.
func (db *DB) LockUser(ctx context.Context, userID string, fn func(ctx context.Context, store profile.Store) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	if err := fn(ctx, txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user %s: %w", userID, err)
	}
	return nil
}

// GetProfile retrieves a user's speaking profile. Returns nil, nil when
// the user has none.
func (db *DB) GetProfile(ctx context.Context, userID string) (*types.SpeakingProfile, error) {
	return getProfile(ctx, db.pool, userID)
}

func getProfile(ctx context.Context, q querier, userID string) (*types.SpeakingProfile, error) {
	var data []byte
	err := q.QueryRow(ctx,
		`SELECT profile FROM speaking_profiles WHERE user_id = $1`,
		userID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return decodeProfile(data)
}

// SaveProfile upserts a profile. The last write wins.
func (db *DB) SaveProfile(ctx context.Context, p *types.SpeakingProfile) error {
	return saveProfile(ctx, db.pool, p)
}

func saveProfile(ctx context.Context, q querier, p *types.SpeakingProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO speaking_profiles (user_id, profile, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET profile = $2, updated_at = $3`,
		p.UserID, data, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.UserID, err)
	}
	return nil
}

// AppendRecord stores a practice record. Records are never updated.
func (db *DB) AppendRecord(ctx context.Context, record types.PracticeRecord) error {
	return appendRecord(ctx, db.pool, record)
}

func appendRecord(ctx context.Context, q querier, record types.PracticeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO practice_records (id, user_id, practice_type, created_at, record)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.UserID, string(record.PracticeType), record.Timestamp, data,
	)
	if err != nil {
		return fmt.Errorf("failed to append record %s: %w", record.ID, err)
	}
	return nil
}

// ListRecords retrieves a user's most recent records, newest first.
func (db *DB) ListRecords(ctx context.Context, userID string, limit int) ([]types.PracticeRecord, error) {
	return listRecords(ctx, db.pool, userID, limit)
}

func listRecords(ctx context.Context, q querier, userID string, limit int) ([]types.PracticeRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT record FROM practice_records
		 WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []types.PracticeRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var record types.PracticeRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// decodeProfile validates a stored profile document before decoding it.
func decodeProfile(data []byte) (*types.SpeakingProfile, error) {
	if err := schemas.ValidateBytes(schemas.Profile, data); err != nil {
		return nil, fmt.Errorf("stored profile is invalid: %w", err)
	}
	var p types.SpeakingProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}
