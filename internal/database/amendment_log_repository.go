package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/staycare/booking-backend/internal/models"
)

const logColumns = `id, loggable_type, loggable_id, type, approved, data, created_at, updated_at`

// MergeOutcome reports what happened to one amendment entry
type MergeOutcome struct {
	Log     *models.Log
	Created bool
}

// AmendmentLogRepository handles database operations for booking amendment logs
type AmendmentLogRepository struct {
	db DB
}

// NewAmendmentLogRepository creates a new AmendmentLogRepository
func NewAmendmentLogRepository(db DB) *AmendmentLogRepository {
	return &AmendmentLogRepository{db: db}
}

// MergePending records amendment entries for a booking. An entry that
// matches a pending log for the same question is merged into it; an approved
// entry also resolves that log as approved, so no stale pending log can revert
// past it. Other entries are inserted. Writers of one booking are serialized
// by an advisory lock held until commit.
func (r *AmendmentLogRepository) MergePending(ctx context.Context, bookingID int64, entries []models.LogData) ([]MergeOutcome, error) {
	outcomes := make([]MergeOutcome, 0, len(entries))
	if len(entries) == 0 {
		return outcomes, nil
	}

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bookingID); err != nil {
			return fmt.Errorf("failed to lock booking %d: %w", bookingID, err)
		}

		for _, entry := range entries {
			outcome, err := mergeEntry(ctx, tx, bookingID, entry)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, *outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// GetByID retrieves a booking amendment log
func (r *AmendmentLogRepository) GetByID(ctx context.Context, id int64) (*models.Log, error) {
	query := `SELECT ` + logColumns + ` FROM logs WHERE id = $1 AND loggable_type = $2`

	var row models.LogRow
	if err := r.db.GetContext(ctx, &row, query, id, models.LoggableBooking); err != nil {
		return nil, notFound(err, "amendment log")
	}
	return row.ToLog()
}

// ListForBooking returns the amendment logs of a booking, newest first
func (r *AmendmentLogRepository) ListForBooking(ctx context.Context, bookingID int64, pendingOnly bool) ([]*models.Log, error) {
	query := `SELECT ` + logColumns + `
		FROM logs
		WHERE loggable_type = $1 AND loggable_id = $2 AND ($3 = FALSE OR approved = FALSE)
		ORDER BY created_at DESC, id DESC`

	rows := []models.LogRow{}
	if err := r.db.SelectContext(ctx, &rows, query, models.LoggableBooking, bookingID, pendingOnly); err != nil {
		return nil, fmt.Errorf("failed to list amendment logs: %w", err)
	}

	logs := make([]*models.Log, 0, len(rows))
	for _, row := range rows {
		log, err := row.ToLog()
		if err != nil {
			return nil, fmt.Errorf("log %d: %w", row.ID, err)
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// SaveReview stores the reviewed payload of a still-pending log
func (r *AmendmentLogRepository) SaveReview(ctx context.Context, log *models.Log) error {
	data, err := json.Marshal(log.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal log data: %w", err)
	}

	query := `
		UPDATE logs SET data = $1, approved = $2, updated_at = NOW()
		WHERE id = $3 AND approved = FALSE`
	result, err := r.db.ExecContext(ctx, query, data, log.Approved(), log.ID)
	if err != nil {
		return fmt.Errorf("failed to update amendment log: %w", err)
	}
	return expectOneRow(result, log.ID)
}

// RevertQaPair writes answer back to the amended pair, optionally deletes the
// listed dependent questions of the same section and removes the log.
func (r *AmendmentLogRepository) RevertQaPair(ctx context.Context, log *models.Log, answer string, dependents []string) error {
	data, ok := log.Data.(*models.QaPairLogData)
	if !ok {
		return fmt.Errorf("log %d is not a qa_pair amendment", log.ID)
	}
	pair := data.QaPair

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := deletePendingLog(ctx, tx, log.ID); err != nil {
			return err
		}

		query := `
			INSERT INTO qa_pairs (section_id, question, answer, question_type, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT (question, section_id) DO UPDATE SET
				answer = EXCLUDED.answer,
				updated_at = NOW()`
		if _, err := tx.ExecContext(ctx, query, pair.SectionID, pair.Question, answer, pair.QuestionType); err != nil {
			return fmt.Errorf("failed to restore answer for %q: %w", pair.Question, err)
		}

		if len(dependents) > 0 {
			query = `DELETE FROM qa_pairs WHERE section_id = $1 AND question = ANY($2)`
			if _, err := tx.ExecContext(ctx, query, pair.SectionID, models.QuestionSet(dependents)); err != nil {
				return fmt.Errorf("failed to clear dependent answers: %w", err)
			}
		}
		return nil
	})
}

// RevertEquipment points the booking's equipment link back at equipmentID and removes the log
func (r *AmendmentLogRepository) RevertEquipment(ctx context.Context, log *models.Log, equipmentID int64) error {
	data, ok := log.Data.(*models.EquipmentLogData)
	if !ok {
		return fmt.Errorf("log %d is not an equipment amendment", log.ID)
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := deletePendingLog(ctx, tx, log.ID); err != nil {
			return err
		}
		return linkEquipment(ctx, tx, log.LoggableID, data.Equipment.Question, equipmentID)
	})
}

func mergeEntry(ctx context.Context, tx *sqlx.Tx, bookingID int64, entry models.LogData) (*MergeOutcome, error) {
	existing, err := findPending(ctx, tx, bookingID, entry)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := mergeInto(existing.Data, entry); err != nil {
			return nil, err
		}
		if entry.Review().Approved {
			existing.Data.Review().Adopt(entry.Review())
		}
		if err := updateLogData(ctx, tx, existing); err != nil {
			return nil, err
		}
		return &MergeOutcome{Log: existing}, nil
	}

	created, err := insertLog(ctx, tx, bookingID, entry)
	if err != nil {
		return nil, err
	}
	return &MergeOutcome{Log: created, Created: true}, nil
}

// findPending locks and returns the unapproved log for the entry's question.
// An id key also matches logs recorded by text before the pair had an id.
func findPending(ctx context.Context, tx *sqlx.Tx, bookingID int64, entry models.LogData) (*models.Log, error) {
	base := `SELECT ` + logColumns + `
		FROM logs
		WHERE loggable_type = $1 AND loggable_id = $2 AND type = $3 AND approved = FALSE AND `

	var (
		query string
		args  = []interface{}{models.LoggableBooking, bookingID, entry.Kind()}
	)

	switch data := entry.(type) {
	case *models.QaPairLogData:
		key := data.Key()
		id := ""
		if key.IsByID() {
			id = strconv.FormatInt(key.ID, 10)
		}
		query = base + `(
			($4 <> '' AND data->'qa_pair'->>'id' = $4)
			OR (
				($4 = '' OR COALESCE(data->'qa_pair'->>'id', '') = '')
				AND data->'qa_pair'->>'question' = $5
				AND data->'qa_pair'->>'question_type' = $6
			)
		)`
		args = append(args, id, data.QaPair.Question, data.QaPair.QuestionType)
	case *models.EquipmentLogData:
		query = base + `data->'equipment'->>'question' = $4`
		args = append(args, data.Equipment.Question)
	default:
		return nil, fmt.Errorf("unsupported log data %T", entry)
	}
	query += ` ORDER BY id LIMIT 1 FOR UPDATE`

	var row models.LogRow
	err := tx.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending log: %w", err)
	}
	return row.ToLog()
}

func mergeInto(existing, newer models.LogData) error {
	switch current := existing.(type) {
	case *models.QaPairLogData:
		next, ok := newer.(*models.QaPairLogData)
		if !ok {
			return fmt.Errorf("cannot merge %s into %s log", newer.Kind(), existing.Kind())
		}
		current.Merge(next)
	case *models.EquipmentLogData:
		next, ok := newer.(*models.EquipmentLogData)
		if !ok {
			return fmt.Errorf("cannot merge %s into %s log", newer.Kind(), existing.Kind())
		}
		current.Merge(next)
	default:
		return fmt.Errorf("unsupported log data %T", existing)
	}
	return nil
}

func insertLog(ctx context.Context, tx *sqlx.Tx, bookingID int64, entry models.LogData) (*models.Log, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log data: %w", err)
	}

	log := &models.Log{
		LoggableType: models.LoggableBooking,
		LoggableID:   bookingID,
		Type:         entry.Kind(),
		Data:         entry,
	}
	query := `
		INSERT INTO logs (loggable_type, loggable_id, type, approved, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err = tx.QueryRowxContext(ctx, query,
		log.LoggableType,
		log.LoggableID,
		log.Type,
		entry.Review().Approved,
		data,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create amendment log: %w", err)
	}
	return log, nil
}

func updateLogData(ctx context.Context, tx *sqlx.Tx, log *models.Log) error {
	data, err := json.Marshal(log.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal log data: %w", err)
	}

	query := `UPDATE logs SET data = $1, approved = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`
	if err := tx.QueryRowxContext(ctx, query, data, log.Approved(), log.ID).Scan(&log.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update amendment log: %w", err)
	}
	return nil
}

func deletePendingLog(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM logs WHERE id = $1 AND approved = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete amendment log: %w", err)
	}
	return expectOneRow(result, id)
}

// expectOneRow maps a write that touched no pending log to ErrNotFound
func expectOneRow(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("pending amendment log %d: %w", id, ErrNotFound)
	}
	return nil
}
