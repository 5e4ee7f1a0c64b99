package workspace

import (
	"errors"

	"github.com/google/uuid"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
)

// NotificationCenter shows notifications to the user. Notify must not block.
type NotificationCenter interface {
	Notify(n domain.Notification)
}

// NotifierFunc adapts a function to NotificationCenter.
type NotifierFunc func(domain.Notification)

func (f NotifierFunc) Notify(n domain.Notification) { f(n) }

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(n domain.Notification) {
	fields := []any{"type", n.Type, "title", n.Title}
	if n.Category != "" {
		fields = append(fields, "category", n.Category)
	}
	for k, v := range n.Fields {
		fields = append(fields, "field."+k, v)
	}
	switch n.Type {
	case domain.NotificationError:
		log.Error(log.CatWorkspace, n.Message, fields...)
	case domain.NotificationWarning:
		log.Warn(log.CatWorkspace, n.Message, fields...)
	default:
		log.Info(log.CatWorkspace, n.Message, fields...)
	}
}

// ErrorNotification builds the error notification shown for err.
// Retryable failures, including exhausted retries, offer a retry action.
func ErrorNotification(title string, err error) domain.Notification {
	cat := categoryOf(err)
	n := domain.Notification{
		ID:       uuid.NewString(),
		Type:     domain.NotificationError,
		Category: cat,
		Title:    title,
		Message:  err.Error(),
		Fields:   domain.FieldsOf(err),
	}
	if cat.Retryable() || errors.Is(err, domain.ErrRetriesExhausted) {
		n.Actions = []domain.NotificationAction{{ID: domain.ActionRetry, Label: "Retry"}}
	}
	return n
}

// WarningNotification builds a warning notification.
func WarningNotification(title string, err error) domain.Notification {
	return domain.Notification{
		ID:       uuid.NewString(),
		Type:     domain.NotificationWarning,
		Category: categoryOf(err),
		Title:    title,
		Message:  err.Error(),
	}
}

// categoryOf classifies err; errors outside the taxonomy are treated as
// input the workspace refused.
func categoryOf(err error) domain.Category {
	if cat := domain.CategoryOf(err); cat != "" {
		return cat
	}
	return domain.CategoryValidation
}
