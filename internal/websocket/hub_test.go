package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/splitweek/internal/auth"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64, children ...int64) *Client {
	return NewClient(hub, nil, userID, children)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message %s", data)
	default:
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1) // second call must not panic
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestSendToUser(t *testing.T) {
	hub := NewHub(slog.Default())

	phone := mockClient(hub, 1)
	laptop := mockClient(hub, 1)
	other := mockClient(hub, 2)
	for _, c := range []*Client{phone, laptop, other} {
		hub.Register(c)
	}

	hub.SendToUser(1, NewMessage("notification", "created", 10, 99, nil))

	for _, c := range []*Client{phone, laptop} {
		got := receive(t, c)
		if got.Type != "notification_created" || got.ID != 99 || got.ChildID != 10 {
			t.Errorf("got %+v", got)
		}
	}
	expectNothing(t, other)
}

func TestPublishToChild(t *testing.T) {
	hub := NewHub(slog.Default())

	mario := mockClient(hub, 1, 10)
	alex := mockClient(hub, 2, 10, 11)
	stranger := mockClient(hub, 3, 12)
	for _, c := range []*Client{mario, alex, stranger} {
		hub.Register(c)
	}

	hub.PublishToChild(10, NewMessage("custody_day", "updated", 10, 5, nil))

	receive(t, mario)
	receive(t, alex)
	expectNothing(t, stranger)

	hub.Subscribe(3, 10)
	hub.PublishToChild(10, NewMessage("custody_day", "updated", 10, 6, nil))
	if got := receive(t, stranger); got.ID != 6 {
		t.Errorf("id = %d, want 6 after subscribe", got.ID)
	}
}

func TestPublishFullBufferDrops(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 10)
	hub.Register(c)

	for i := 0; i < sendBufferSize+5; i++ {
		hub.PublishToChild(10, NewMessage("test", "overflow", 10, int64(i), nil))
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			c := mockClient(hub, user, 1)
			hub.Register(c)
			hub.PublishToChild(1, NewMessage("test", "concurrent", 1, 0, nil))
			hub.SendToUser(user, NewMessage("test", "direct", 1, 0, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 4))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

type stubVerifier struct{}

func (stubVerifier) Verify(string) (auth.AuthContext, error) {
	return auth.AuthContext{}, errors.New("bad token")
}

func TestHandleWebSocketRejectsBadToken(t *testing.T) {
	hub := NewHub(slog.Default())
	h := HandleWebSocket(hub, stubVerifier{}, func(int64) ([]int64, error) { return nil, nil }, slog.Default())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ws?access_token=nope", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if hub.ClientCount() != 0 {
		t.Error("no client should register on auth failure")
	}
}

type recordingVerifier struct{ got []string }

func (v *recordingVerifier) Verify(token string) (auth.AuthContext, error) {
	v.got = append(v.got, token)
	return auth.AuthContext{}, errors.New("bad token")
}

func TestHandleWebSocketHeaderSchemeCaseInsensitive(t *testing.T) {
	v := &recordingVerifier{}
	h := HandleWebSocket(NewHub(slog.Default()), v, func(int64) ([]int64, error) { return nil, nil }, slog.Default())

	for _, header := range []string{"Bearer tok-1", "bearer tok-1", "BEARER  tok-1 "} {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", header)
		h(httptest.NewRecorder(), req)
	}

	for i, got := range v.got {
		if got != "tok-1" {
			t.Errorf("call %d: verifier got %q, want %q", i, got, "tok-1")
		}
	}
	if len(v.got) != 3 {
		t.Errorf("verifier called %d times, want 3", len(v.got))
	}
}
