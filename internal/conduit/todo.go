package conduit

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/calstore"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/pilot"
)

type todoCodec struct{}

func (todoCodec) kind() config.Kind { return config.KindToDo }
func (todoCodec) label() string     { return "ToDo" }
func (todoCodec) dbName() string    { return "ToDoDB" }

func (todoCodec) unpackAppInfo(b []byte) (pilot.AppInfo, error) {
	return pilot.UnpackToDoAppInfo(b)
}

func (todoCodec) toDevice(c *calstore.Component, env *codecEnv) []byte {
	todo := &pilot.ToDo{
		Description: c.Summary,
		Note:        c.FirstDescription(),
		Complete:    c.Status == calstore.StatusCompleted,
		Priority:    toDevicePriority(c.Priority, env.priority),
	}
	if c.Due != nil {
		todo.Due = displayDate(c.Due, env.tz)
	}
	if !pilot.DueInRange(todo.Due) {
		env.logger.Warn("due date out of handheld range, syncing without one",
			zap.String("uid", c.UID), zap.Time("due", todo.Due))
		todo.Due = time.Time{}
	}
	todo.Indefinite = todo.Due.IsZero()
	return todo.Pack()
}

func (todoCodec) fromDevice(rec *pilot.Record, in *calstore.Component, env *codecEnv) (*calstore.Component, error) {
	todo, err := pilot.UnpackToDo(rec.Data)
	if err != nil {
		return nil, err
	}
	now := env.now
	c := newComponent(calstore.KindTodo, in, now)
	c.LastModified = &now
	c.Summary = todo.Description

	if todo.Note == "" {
		c.Description = nil
		c.Comment = nil
	} else {
		c.Description = []string{todo.Note}
	}

	if todo.Complete {
		percent := 100
		c.Completed = &now
		c.Percent = &percent
		c.Status = calstore.StatusCompleted
	} else {
		c.Completed = nil
		if c.Percent == nil || *c.Percent == 100 {
			percent := 0
			c.Percent = &percent
		}
		if c.Status == calstore.StatusCompleted {
			c.Status = calstore.StatusNeedsAction
		}
	}

	if !todo.Indefinite && !todo.Due.IsZero() {
		c.Due = &calstore.DateTime{Time: todo.Due, TZID: env.tz.String(), DateOnly: true}
	} else {
		c.Due = nil
	}

	priority := fromDevicePriority(todo.Priority)
	c.Priority = &priority

	finishFromDevice(c, rec, env)
	return c, nil
}

// toDevicePriority folds an iCalendar priority (1 highest, 9 lowest) into
// the five device levels. Unset or 0 uses the configured default.
func toDevicePriority(p *int, fallback int) int {
	if p == nil || *p == 0 {
		return fallback
	}
	switch v := *p; {
	case v <= 3:
		return 1
	case v == 4:
		return 2
	case v == 5:
		return 3
	case v <= 7:
		return 4
	default:
		return 5
	}
}

func fromDevicePriority(p int) int {
	switch p {
	case 1:
		return 3
	case 2, 3:
		return 5
	case 4:
		return 7
	default:
		return 9
	}
}

// displayDate returns the calendar day of due as seen in tz. All-day dates
// carry no zone and are taken as they are.
func displayDate(due *calstore.DateTime, tz *time.Location) time.Time {
	t := due.Time
	if !due.DateOnly {
		t = t.In(tz)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
