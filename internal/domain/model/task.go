package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"foundation_portal/internal/common"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const (
	MaxTaskTitleLength       = 200
	MaxTaskDescriptionLength = 1000
)

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("%w: priority %q must be low, medium or high", common.ErrValidation, raw)
	}
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)

	if t.Title == "" {
		return common.Validationf("title is required")
	}
	if utf8.RuneCountInString(t.Title) > MaxTaskTitleLength {
		return common.Validationf("title must be at most %d characters", MaxTaskTitleLength)
	}
	if utf8.RuneCountInString(t.Description) > MaxTaskDescriptionLength {
		return common.Validationf("description must be at most %d characters", MaxTaskDescriptionLength)
	}
	priority, err := ParsePriority(string(t.Priority))
	if err != nil {
		return err
	}
	t.Priority = priority
	if t.CreatedBy == "" {
		return common.Validationf("creator is required")
	}
	return nil
}
