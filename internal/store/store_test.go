package store

import (
	"path/filepath"
	"testing"

	"github.com/chiayulab/linebridge/internal/models"
)

func sampleMessages() []models.Message {
	return []models.Message{
		{ID: "m1", UserID: "U1", Direction: models.DirectionInbound, Text: "00001", Time: 100},
		{ID: "m2", UserID: "U1", Direction: models.DirectionOutbound, Text: "驗證成功", Time: 101},
		{ID: "m3", UserID: "U2", Direction: models.DirectionInbound, Text: "hello", Time: 102},
	}
}

func roundTrip(t *testing.T, s Store) {
	t.Helper()
	for _, m := range sampleMessages() {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage(%s) failed: %v", m.ID, err)
		}
	}
	got, err := s.GetMessages()
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	want := sampleMessages()
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close() //nolint:errcheck
	roundTrip(t, s)
}

func TestInMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	s.AddMessage(models.Message{ID: "m1", UserID: "U1", Direction: models.DirectionInbound, Text: "x", Time: 1}) //nolint:errcheck

	first, _ := s.GetMessages()
	first[0].Text = "mutated"

	second, _ := s.GetMessages()
	if second[0].Text != "x" {
		t.Error("GetMessages must return a copy, not the backing slice")
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "linebridge.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close() //nolint:errcheck
	roundTrip(t, s)
}

func TestSQLiteStore_CreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "linebridge.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore should create missing directories: %v", err)
	}
	s.Close() //nolint:errcheck
}

func TestNewSQLiteStore_RequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when DSN is not set")
	}
}

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://user:pw@host/db":   true,
		"postgresql://user:pw@host/db": true,
		"/var/lib/linebridge/db.db":    false,
		"linebridge.db":                false,
		"":                             false,
	}
	for dsn, want := range cases {
		if got := IsPostgresDSN(dsn); got != want {
			t.Errorf("IsPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}
