package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Vork-21/payplan/pkg/analysis"
)

func testResult(source string) *analysis.Result {
	return &analysis.Result{
		ID:     uuid.New(),
		AsOf:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Source: source,
	}
}

func TestMemoryStore_SaveAndLatest(t *testing.T) {
	s := NewMemory()

	if _, err := s.Latest(); !errors.Is(err, ErrNoRun) {
		t.Fatalf("Expected ErrNoRun from an empty store, got %v", err)
	}

	first := testResult("first.csv")
	second := testResult("second.csv")
	if err := s.Save(first); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := s.Save(second); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Failed to fetch latest run: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("Expected latest run %s, got %s", second.ID, latest.ID)
	}
}

func TestMemoryStore_GetByID(t *testing.T) {
	s := NewMemory()

	first := testResult("first.csv")
	second := testResult("second.csv")
	if err := s.Save(first); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := s.Save(second); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	// Older runs stay reachable by id after a newer save.
	got, err := s.Get(first.ID)
	if err != nil {
		t.Fatalf("Failed to get run by id: %v", err)
	}
	if got.Source != "first.csv" {
		t.Errorf("Expected source first.csv, got %s", got.Source)
	}

	if _, err := s.Get(uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound for an unknown id, got %v", err)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	s := NewMemory()

	run := testResult("ledger.csv")
	if err := s.Save(run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Failed to clear store: %v", err)
	}
	if _, err := s.Latest(); !errors.Is(err, ErrNoRun) {
		t.Errorf("Expected ErrNoRun after clear, got %v", err)
	}
	if _, err := s.Get(run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected cleared runs unreachable by id, got %v", err)
	}
}
