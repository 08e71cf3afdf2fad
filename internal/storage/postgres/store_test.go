package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"finwise/internal/storage"
)

// Runs only against a real database: FINWISE_TEST_DATABASE_URL=postgres://...
func TestStoreRoundTrip(t *testing.T) {
	url := os.Getenv("FINWISE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FINWISE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	key := storage.SeededKey("pg-test@example.com")
	_ = s.Delete(ctx, key)
	if _, err := s.Get(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, key, []byte("true")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil || string(got) != "true" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "://not-a-url"); err == nil {
		t.Fatalf("expected parse error")
	}
}
