package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		wantErr bool
	}{
		{
			name: "valid success",
			msg:  NewSuccessMessage("a1", "tok", "Bearer", "refresh", 3600),
		},
		{
			name: "valid error",
			msg:  NewErrorMessage("a1", "access_denied", "user cancelled"),
		},
		{
			name:    "success without token",
			msg:     &Message{Type: TypeSuccess, AttemptID: "a1"},
			wantErr: true,
		},
		{
			name:    "error without code",
			msg:     &Message{Type: TypeError, AttemptID: "a1"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			msg:     &Message{Type: "oauth_ping"},
			wantErr: true,
		},
		{
			name:    "nil",
			msg:     nil,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := NewSuccessMessage("a1", "tok", "Bearer", "refresh", 3600)
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.AccessToken != "tok" || got.ExpiresIn != 3600 || got.AttemptID != "a1" {
		t.Errorf("round trip mangled message: %+v", got)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	if _, err := Unmarshal([]byte("{not json")); err == nil {
		t.Error("Unmarshal() accepted malformed payload")
	}
	if _, err := Unmarshal([]byte(`{"type":"oauth_success"}`)); err == nil {
		t.Error("Unmarshal() accepted success message without token")
	}
}

func TestListenerAcceptsExpectedOrigin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	widget, popup := NewPair("https://crm.example.com", "https://crm.example.com")
	defer widget.Close()

	l, err := NewListener(ListenerConfig{
		Channel:        widget,
		ExpectedOrigin: "https://CRM.example.com/",
	})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}

	go func() {
		_ = popup.Post(ctx, "https://crm.example.com", NewSuccessMessage("a1", "tok", "Bearer", "", 3600))
	}()

	msg, err := l.Await(ctx, "a1")
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if msg.AccessToken != "tok" {
		t.Errorf("Await() message = %+v, want success with token", msg)
	}
}

func TestListenerDropsForeignOrigin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	widget, attacker := NewPair("https://crm.example.com", "https://evil.example.com")
	defer widget.Close()

	l, err := NewListener(ListenerConfig{
		Channel:        widget,
		ExpectedOrigin: "https://crm.example.com",
	})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}

	_ = attacker.Post(ctx, "https://crm.example.com", NewSuccessMessage("a1", "stolen", "Bearer", "", 3600))

	// The foreign message must be dropped, so Await runs out the clock.
	if _, err := l.Await(ctx, "a1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() error = %v, want deadline after dropping foreign-origin message", err)
	}
}

func TestListenerDropsStaleAttempt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	widget, popup := NewPair("https://crm.example.com", "https://crm.example.com")
	defer widget.Close()

	l, err := NewListener(ListenerConfig{
		Channel:        widget,
		ExpectedOrigin: "https://crm.example.com",
	})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}

	// A message from a superseded attempt arrives first.
	_ = popup.Post(ctx, "https://crm.example.com", NewSuccessMessage("old", "stale-tok", "Bearer", "", 3600))
	_ = popup.Post(ctx, "https://crm.example.com", NewSuccessMessage("a2", "fresh-tok", "Bearer", "", 3600))

	msg, err := l.Await(ctx, "a2")
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if msg.AccessToken != "fresh-tok" {
		t.Errorf("Await() accepted stale attempt message: %+v", msg)
	}
}

// fakeHandle is a popup handle driven by the test.
type fakeHandle struct {
	mu     sync.Mutex
	closed bool
}

func (h *fakeHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func TestPairCloseConcurrent(t *testing.T) {
	widget, popup := NewPair("https://crm.example.com", "https://crm.example.com")

	var wg sync.WaitGroup
	for _, end := range []Channel{widget, popup, widget, popup} {
		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		}(end)
	}
	wg.Wait()

	if _, err := widget.Receive(context.Background()); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Receive() after close error = %v, want ErrChannelClosed", err)
	}
}

func TestWatchDetectsClose(t *testing.T) {
	h := &fakeHandle{}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = h.Close()
	}()

	err := Watch(context.Background(), h, WatcherConfig{Interval: 5 * time.Millisecond, Timeout: time.Second})
	if !errors.Is(err, ErrPopupClosed) {
		t.Errorf("Watch() error = %v, want ErrPopupClosed", err)
	}
}

func TestWatchTimeoutClosesPopup(t *testing.T) {
	h := &fakeHandle{}
	err := Watch(context.Background(), h, WatcherConfig{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond})
	if !errors.Is(err, ErrPopupTimeout) {
		t.Errorf("Watch() error = %v, want ErrPopupTimeout", err)
	}
	if !h.Closed() {
		t.Error("Watch() did not close the popup on timeout")
	}
}

func TestWatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Watch(ctx, &fakeHandle{}, WatcherConfig{Interval: 5 * time.Millisecond, Timeout: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() error = %v, want context.Canceled", err)
	}
}
