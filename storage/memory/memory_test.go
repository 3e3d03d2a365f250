package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/archivault/connect-widget/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "value" {
		t.Errorf("Get() = %q, want %q", got, "value")
	}
}

func TestStoreMissingKey(t *testing.T) {
	got, err := New().Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "" {
		t.Errorf("Get(absent) = %q, want empty", got)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := s.Get(ctx, "key"); got != "" {
		t.Errorf("Get() after Delete = %q, want empty", got)
	}

	// Deleting an absent key is a no-op.
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}
}

func TestUnavailableStore(t *testing.T) {
	ctx := context.Background()
	s := NewUnavailable()

	if _, err := s.Get(ctx, "key"); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Get() error = %v, want ErrUnavailable", err)
	}
	if err := s.Set(ctx, "key", "v"); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Set() error = %v, want ErrUnavailable", err)
	}
	if err := s.Delete(ctx, "key"); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Delete() error = %v, want ErrUnavailable", err)
	}

	s.SetAvailable(true)
	if err := s.Set(ctx, "key", "v"); err != nil {
		t.Errorf("Set() after SetAvailable error = %v", err)
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "shared", "value")
		}()
	}
	wg.Wait()

	if got, _ := s.Get(ctx, "shared"); got != "value" {
		t.Errorf("Get() = %q, want %q", got, "value")
	}
}
