package device

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryRecordSightingCaches(t *testing.T) {
	reg := NewRegistry(NewSQLiteRepository(openTestDB(t)), nil)
	ctx := context.Background()

	if _, err := reg.RecordSighting(ctx, "sensor-01", "telemetry", map[string]any{"v": float64(1)}); err != nil {
		t.Fatalf("RecordSighting() error = %v", err)
	}

	d, err := reg.Get(ctx, "sensor-01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", d.MessageCount)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistryGetUnknownDevice(t *testing.T) {
	reg := NewRegistry(NewSQLiteRepository(openTestDB(t)), nil)

	if _, err := reg.Get(context.Background(), "ghost"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistryWarmLoadsExisting(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()

	seed := NewRegistry(repo, nil)
	for _, id := range []string{"a", "b"} {
		if _, err := seed.RecordSighting(ctx, id, "telemetry", nil); err != nil {
			t.Fatalf("RecordSighting(%s) error = %v", id, err)
		}
	}

	// Fresh registry over the same store sees the devices after warming.
	reg := NewRegistry(repo, nil)
	if reg.Count() != 0 {
		t.Fatalf("Count() = %d before warm, want 0", reg.Count())
	}
	if err := reg.Warm(ctx); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d after warm, want 2", reg.Count())
	}
	if len(reg.List()) != 2 {
		t.Errorf("len(List()) = %d, want 2", len(reg.List()))
	}
}
