package factory

import (
	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/adapters/calendar"
	"github.com/slotbot-ai/slotbot/internal/adapters/task"
	"github.com/slotbot-ai/slotbot/internal/config"
	"github.com/slotbot-ai/slotbot/internal/understand"
)

// NewCalendar creates the calendar REST adapter.
func NewCalendar(cfg *config.Config) *calendar.Client {
	return calendar.New(cfg.CalendarBaseURL, cfg.CalendarID, cfg.AdapterTimeout())
}

// NewTasks creates the task REST adapter.
func NewTasks(cfg *config.Config) *task.Client {
	return task.New(cfg.TaskBaseURL, cfg.AdapterTimeout())
}

// NewUnderstander creates the OpenAI classifier wrapped in its retry policy.
func NewUnderstander(cfg *config.Config) understand.Understander {
	classifier := understand.New(func(o *understand.Options) {
		o.Model = cfg.OpenAIModel
		o.Timeout = cfg.AdapterTimeout()
	})
	return understand.WithRetry(classifier, adapters.DefaultPolicy(cfg.UnderstandMaxAttempts))
}
