package services

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
	"github.com/staycare/booking-backend/internal/models"
)

// MissingAnswers lists the required template questions that have no answer.
// A question whose dependency is not met is not required. Equipment questions
// are answered through equipment links and are not checked here.
func MissingAnswers(sections []models.Section, questions []models.TemplateQuestion) []string {
	bySection := make(map[int64]map[string]string, len(sections))
	all := map[string]string{}
	for _, section := range sections {
		answers, ok := bySection[section.TemplateSectionID]
		if !ok {
			answers = map[string]string{}
			bySection[section.TemplateSectionID] = answers
		}
		for _, pair := range section.QaPairs {
			answers[pair.Question] = pair.Answer
			all[pair.Question] = pair.Answer
		}
	}

	missing := []string{}
	for _, q := range questions {
		if !q.Required || q.QuestionType == models.QuestionTypeEquipment {
			continue
		}
		answers := bySection[q.TemplateSectionID]
		if !dependencyMet(q, answers, all) {
			continue
		}
		if isBlankAnswer(answers[q.Question]) {
			missing = append(missing, q.Question)
		}
	}
	return missing
}

// IsComplete reports whether a booking with these sections answers every required question
func IsComplete(sections []models.Section, questions []models.TemplateQuestion) bool {
	if len(sections) == 0 {
		return false
	}
	return len(MissingAnswers(sections, questions)) == 0
}

func dependencyMet(q models.TemplateQuestion, section, all map[string]string) bool {
	if q.DependsOnQuestion == nil || *q.DependsOnQuestion == "" {
		return true
	}

	answer, ok := section[*q.DependsOnQuestion]
	if !ok {
		answer = all[*q.DependsOnQuestion]
	}
	if q.DependsOnValue == nil {
		return !isBlankAnswer(answer)
	}
	return lo.Contains(answerValues(answer), *q.DependsOnValue)
}

// answerValues returns the selectable values held by a stored answer. Choice
// answers are stored as JSON objects or arrays of them.
func answerValues(answer string) []string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return []string{answer}
	}

	switch v := raw.(type) {
	case []interface{}:
		return lo.FilterMap(v, func(item interface{}, _ int) (string, bool) {
			s := choiceValue(item)
			return s, s != ""
		})
	default:
		if s := choiceValue(v); s != "" {
			return []string{s}
		}
		return []string{answer}
	}
}

func choiceValue(v interface{}) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]interface{}:
		for _, key := range []string{"value", "name"} {
			if s, ok := c[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func isBlankAnswer(answer string) bool {
	switch strings.TrimSpace(answer) {
	case "", "null", "[]", "{}", `""`:
		return true
	}
	return false
}
