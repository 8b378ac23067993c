package database

import (
	"context"
	"fmt"

	"github.com/staycare/booking-backend/internal/models"
)

// TemplateRepository reads questionnaire templates
type TemplateRepository struct {
	db DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// QuestionsForSections returns the template questions of the given template sections
func (r *TemplateRepository) QuestionsForSections(ctx context.Context, templateSectionIDs []int64) ([]models.TemplateQuestion, error) {
	questions := []models.TemplateQuestion{}
	if len(templateSectionIDs) == 0 {
		return questions, nil
	}

	query := `
		SELECT id, template_section_id, question, question_type, required,
			depends_on_question, depends_on_value
		FROM template_questions
		WHERE template_section_id = ANY($1)
		ORDER BY template_section_id, id`
	if err := r.db.SelectContext(ctx, &questions, query, models.Int64Array(templateSectionIDs)); err != nil {
		return nil, fmt.Errorf("failed to list template questions: %w", err)
	}
	return questions, nil
}
