package weightstore

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

func testSnapshot(id, engine string, trainedAt time.Time) *forecast.WeightSnapshot {
	return &forecast.WeightSnapshot{
		ID:             id,
		Engine:         engine,
		TrainedAt:      trainedAt,
		SampleCount:    7,
		ValidationLoss: 0.042,
		Config:         json.RawMessage(`{"latentDim":5}`),
		Payload:        json.RawMessage(`{"A":[0.9,0.9,0.9,0.9,0.9]}`),
	}
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "weights.db"), opts...)
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRequiresInitialize(t *testing.T) {
	s := NewStore(":memory:")
	if err := s.Save(testSnapshot("x", forecast.EnginePLRNN, time.Now())); err != forecast.ErrNotInitialized {
		t.Fatalf("Save err = %v, want ErrNotInitialized", err)
	}
	if _, err := s.Load("x"); err != forecast.ErrNotInitialized {
		t.Fatalf("Load err = %v, want ErrNotInitialized", err)
	}
}

func TestStoreSaveRejectsEmptyID(t *testing.T) {
	s := newStore(t)
	if err := s.Save(testSnapshot("", forecast.EnginePLRNN, time.Now())); err == nil {
		t.Fatal("Save accepted a snapshot without an ID")
	}
}

func storeRoundTrip(t *testing.T, s *Store) {
	t.Helper()
	now := time.Now().Truncate(time.Millisecond)

	snap := testSnapshot("bundle-1", forecast.EnginePLRNN, now)
	if err := s.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("bundle-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Engine != forecast.EnginePLRNN || got.SampleCount != 7 || got.ValidationLoss != 0.042 {
		t.Errorf("loaded snapshot mismatch: %+v", got)
	}
	if string(got.Payload) != string(snap.Payload) {
		t.Errorf("payload = %s, want %s", got.Payload, snap.Payload)
	}
	if !got.TrainedAt.Equal(now) {
		t.Errorf("trainedAt = %v, want %v", got.TrainedAt, now)
	}

	// Upsert replaces in place.
	snap.ValidationLoss = 0.01
	if err := s.Save(snap); err != nil {
		t.Fatalf("Save (upsert): %v", err)
	}
	got, err = s.Load("bundle-1")
	if err != nil {
		t.Fatalf("Load after upsert: %v", err)
	}
	if got.ValidationLoss != 0.01 {
		t.Errorf("validation loss = %v, want 0.01", got.ValidationLoss)
	}

	if _, err := s.Load("missing"); err == nil {
		t.Error("Load returned a snapshot for an unknown ID")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) { storeRoundTrip(t, newStore(t)) })
	t.Run("in-memory", func(t *testing.T) { storeRoundTrip(t, newStore(t, WithInMemoryFallback())) })
}

func storeLatestAndList(t *testing.T, s *Store) {
	t.Helper()
	base := time.Now().Truncate(time.Millisecond)

	saves := []*forecast.WeightSnapshot{
		testSnapshot("old-plrnn", forecast.EnginePLRNN, base.Add(-2*time.Hour)),
		testSnapshot("new-plrnn", forecast.EnginePLRNN, base),
		testSnapshot("kf", forecast.EngineKalmanFormer, base.Add(-time.Hour)),
	}
	for _, snap := range saves {
		if err := s.Save(snap); err != nil {
			t.Fatalf("Save %s: %v", snap.ID, err)
		}
	}

	latest, err := s.LoadLatest(forecast.EnginePLRNN)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if latest.ID != "new-plrnn" {
		t.Errorf("latest = %q, want new-plrnn", latest.ID)
	}

	if _, err := s.LoadLatest("unknown-engine"); err == nil {
		t.Error("LoadLatest returned a snapshot for an unknown engine")
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d snapshots, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].TrainedAt.After(list[i-1].TrainedAt) {
			t.Errorf("list not ordered newest first at %d", i)
		}
	}
	for _, snap := range list {
		if len(snap.Payload) != 0 {
			t.Errorf("listed snapshot %q carries a payload", snap.ID)
		}
	}
}

func TestStoreLatestAndList(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) { storeLatestAndList(t, newStore(t)) })
	t.Run("in-memory", func(t *testing.T) { storeLatestAndList(t, newStore(t, WithInMemoryFallback())) })
}

func TestStoreInitializeIdempotent(t *testing.T) {
	s := newStore(t)
	if err := s.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if err := s.Save(testSnapshot("a", forecast.EnginePLRNN, time.Now())); err != nil {
		t.Fatalf("Save after re-initialize: %v", err)
	}
}
