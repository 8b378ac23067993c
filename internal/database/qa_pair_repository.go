package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/staycare/booking-backend/internal/models"
)

const qaPairColumns = `id, section_id, question, answer, question_type, created_at, updated_at`

// SaveBatchResult describes what a batch write changed
type SaveBatchResult struct {
	Saved   []models.QaPair
	Deleted []models.QaPair
	// RemovedFiles are upload paths of deleted file-upload answers, to be removed after commit
	RemovedFiles []string
}

// QaPairRepository handles database operations for sections and their question/answer pairs
type QaPairRepository struct {
	db DB
}

// NewQaPairRepository creates a new QaPairRepository
func NewQaPairRepository(db DB) *QaPairRepository {
	return &QaPairRepository{db: db}
}

// SaveBatch writes a submitted batch in one transaction. Flagged changes are
// deleted, the rest are upserted on (question, section_id). Equipment changes
// are linked in the same transaction. Any failure rolls back the whole batch.
func (r *QaPairRepository) SaveBatch(ctx context.Context, bookingID int64, changes []models.Change, equipment []models.EquipmentChange) (*SaveBatchResult, error) {
	generic := lo.Reject(changes, func(c models.Change, _ int) bool { return c.IsEquipment() })
	result := &SaveBatchResult{}

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := checkSectionOwnership(ctx, tx, bookingID, generic); err != nil {
			return err
		}

		for _, change := range generic {
			if change.Delete {
				deleted, err := deleteQaPair(ctx, tx, change)
				if err != nil {
					return err
				}
				if deleted != nil {
					result.Deleted = append(result.Deleted, *deleted)
					result.RemovedFiles = append(result.RemovedFiles, uploadedFiles(*deleted)...)
				}
				continue
			}

			saved, err := upsertQaPair(ctx, tx, change)
			if err != nil {
				return err
			}
			result.Saved = append(result.Saved, *saved)
		}

		for _, change := range equipment {
			if err := linkEquipment(ctx, tx, bookingID, change.Question, change.EquipmentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListSections returns the booking's sections with their pairs attached
func (r *QaPairRepository) ListSections(ctx context.Context, bookingID int64) ([]models.Section, error) {
	sections := []models.Section{}
	query := `
		SELECT id, booking_id, template_section_id, label, created_at
		FROM sections
		WHERE booking_id = $1
		ORDER BY id`
	if err := r.db.SelectContext(ctx, &sections, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	if len(sections) == 0 {
		return sections, nil
	}

	ids := lo.Map(sections, func(s models.Section, _ int) int64 { return s.ID })
	pairs := []models.QaPair{}
	query = `SELECT ` + qaPairColumns + `
		FROM qa_pairs
		WHERE section_id = ANY($1)
		ORDER BY id`
	if err := r.db.SelectContext(ctx, &pairs, query, models.Int64Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list qa pairs: %w", err)
	}

	bySection := lo.GroupBy(pairs, func(p models.QaPair) int64 { return p.SectionID })
	for i := range sections {
		sections[i].QaPairs = bySection[sections[i].ID]
	}
	return sections, nil
}

// checkSectionOwnership fails when a change targets a section of another booking
func checkSectionOwnership(ctx context.Context, tx *sqlx.Tx, bookingID int64, changes []models.Change) error {
	ids := lo.Uniq(lo.Map(changes, func(c models.Change, _ int) int64 { return c.SectionID }))
	if len(ids) == 0 {
		return nil
	}

	var owned []int64
	query := `SELECT id FROM sections WHERE booking_id = $1 AND id = ANY($2)`
	if err := tx.SelectContext(ctx, &owned, query, bookingID, models.Int64Array(ids)); err != nil {
		return fmt.Errorf("failed to check sections: %w", err)
	}

	if missing, _ := lo.Difference(ids, owned); len(missing) > 0 {
		return fmt.Errorf("section %d of booking %d: %w", missing[0], bookingID, ErrNotFound)
	}
	return nil
}

func upsertQaPair(ctx context.Context, tx *sqlx.Tx, change models.Change) (*models.QaPair, error) {
	query := `
		INSERT INTO qa_pairs (section_id, question, answer, question_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (question, section_id) DO UPDATE SET
			answer = EXCLUDED.answer,
			question_type = EXCLUDED.question_type,
			updated_at = NOW()
		RETURNING ` + qaPairColumns

	var pair models.QaPair
	err := tx.GetContext(ctx, &pair, query,
		change.SectionID,
		change.Question,
		change.AnswerString(),
		change.QuestionType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save answer for %q: %w", change.Question, err)
	}
	return &pair, nil
}

// deleteQaPair removes the pair and returns it, or nil when it did not exist
func deleteQaPair(ctx context.Context, tx *sqlx.Tx, change models.Change) (*models.QaPair, error) {
	query := `
		DELETE FROM qa_pairs
		WHERE section_id = $1 AND question = $2
		RETURNING ` + qaPairColumns

	var pair models.QaPair
	err := tx.GetContext(ctx, &pair, query, change.SectionID, change.Question)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete answer for %q: %w", change.Question, err)
	}
	return &pair, nil
}

// uploadedFiles extracts the stored paths of a file-upload answer. Multi-file
// answers are JSON arrays of paths.
func uploadedFiles(pair models.QaPair) []string {
	if pair.QuestionType != models.QuestionTypeFileUpload || pair.Answer == "" {
		return nil
	}

	if strings.HasPrefix(pair.Answer, "[") {
		var paths []string
		if err := json.Unmarshal([]byte(pair.Answer), &paths); err == nil {
			return lo.Filter(paths, func(p string, _ int) bool { return p != "" })
		}
	}
	return []string{pair.Answer}
}
