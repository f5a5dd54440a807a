package live_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/live"
	"github.com/p-n-ai/academy/internal/progress"
)

func TestHub_DeliversOnlyToOwner(t *testing.T) {
	h := live.NewHub()
	alice, cancelAlice := h.Subscribe("alice")
	defer cancelAlice()
	bob, cancelBob := h.Subscribe("bob")
	defer cancelBob()

	ev := progress.Event{UserID: "alice", Type: progress.EventUnitCompleted, Key: progress.LessonKey("py101", "intro")}
	if err := h.LogEvent(ev); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	select {
	case got := <-alice:
		if got.Key != ev.Key {
			t.Errorf("alice got key %v, want %v", got.Key, ev.Key)
		}
	default:
		t.Fatal("alice received nothing")
	}
	select {
	case got := <-bob:
		t.Errorf("bob received %+v", got)
	default:
	}
}

func TestHub_DropsWhenFull(t *testing.T) {
	h := live.NewHub(live.WithBuffer(1))
	events, cancel := h.Subscribe("alice")
	defer cancel()

	for i := 0; i < 3; i++ {
		_ = h.LogEvent(progress.Event{UserID: "alice", Type: progress.EventExerciseCompleted})
	}
	if n := len(events); n != 1 {
		t.Errorf("buffered events = %d, want 1", n)
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	h := live.NewHub()
	events, cancel := h.Subscribe("alice")
	if got := h.Subscribers(); got != 1 {
		t.Fatalf("Subscribers() = %d, want 1", got)
	}
	cancel()
	cancel()
	if got := h.Subscribers(); got != 0 {
		t.Errorf("Subscribers() after cancel = %d, want 0", got)
	}
	if _, ok := <-events; ok {
		t.Error("channel still open after cancel")
	}
	_ = h.LogEvent(progress.Event{UserID: "alice"})
}

func TestHub_ServeHTTPRequiresUser(t *testing.T) {
	h := live.NewHub()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress/live", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHub_StreamsOverWebSocket(t *testing.T) {
	h := live.NewHub()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	srv := httptest.NewServer(issuer.Middleware(h))
	defer srv.Close()

	token, _, err := issuer.Issue(auth.Identity{UserID: "alice", Username: "alice"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?access_token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	for h.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("subscriber never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	want := progress.Event{UserID: "alice", Type: progress.EventExerciseCompleted, Key: progress.ExerciseKey("ex-1")}
	_ = h.LogEvent(want)

	var got progress.Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Type != want.Type || got.Key != want.Key {
		t.Errorf("got %+v, want %+v", got, want)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
