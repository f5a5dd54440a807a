package progress_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/academy/internal/progress"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := progress.NewMemoryEventLogger()

	err := logger.LogEvent(progress.Event{
		UserID: "user-1",
		Type:   progress.EventUnitCompleted,
		Key:    progress.LessonKey("py", "l1"),
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Type != progress.EventUnitCompleted {
		t.Errorf("Type = %q, want unit_completed", events[0].Type)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	if err := progress.NewMemoryEventLogger().LogEvent(progress.Event{UserID: "u"}); err == nil {
		t.Fatal("expected error for empty type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := progress.NewPostgresEventLogger(nil)

	err := logger.LogEvent(progress.Event{
		UserID: "user-1",
		Type:   progress.EventUnitReset,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

type failingLogger struct{}

func (failingLogger) LogEvent(progress.Event) error { return errors.New("boom") }

func TestMultiEventLogger(t *testing.T) {
	mem := progress.NewMemoryEventLogger()
	multi := progress.MultiEventLogger{failingLogger{}, mem}

	err := multi.LogEvent(progress.Event{UserID: "u", Type: progress.EventExerciseCompleted, Key: progress.ExerciseKey("e")})
	if err == nil {
		t.Error("expected joined error from failing logger")
	}
	if len(mem.Events()) != 1 {
		t.Errorf("later loggers must still receive the event, got %d", len(mem.Events()))
	}
}
