package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

func TestTelemetryStore_InsertAndGet(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	readings := []domain.Reading{
		{Time: base.Add(10 * time.Minute), Value: 3},
		{Time: base, Value: 1},
		{Time: base.Add(5 * time.Minute), Value: 2},
	}
	if err := store.InsertReadings(ctx, "m1", domain.MetricACPower, readings); err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}

	got, err := store.GetReadings(ctx, "m1", domain.MetricACPower, base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("GetReadings failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 readings (inclusive range), got %d", len(got))
	}
	if got[0].Value != 1 || got[1].Value != 2 {
		t.Errorf("readings not ordered: %+v", got)
	}

	other, _ := store.GetReadings(ctx, "m1", domain.MetricDCPower, base, base.Add(time.Hour))
	if len(other) != 0 {
		t.Errorf("metrics must be isolated, got %d readings", len(other))
	}
}

func TestTelemetryStore_Errors(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	if err := store.InsertReadings(ctx, "m1", domain.Metric("bogus"), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	r := []domain.Reading{{Time: base, Value: 1}}
	if err := store.InsertReadings(ctx, "m1", domain.MetricACPower, r); err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}
	if err := store.InsertReadings(ctx, "m1", domain.MetricACPower, r); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
