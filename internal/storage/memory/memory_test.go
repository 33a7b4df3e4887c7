package memory

import (
	"context"
	"testing"

	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/internal/storage/storagetest"
	"github.com/OCAP2/helmsync/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

func TestNew(t *testing.T) {
	b := New()

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.vessels == nil {
		t.Error("vessels map not initialized")
	}
	if b.profiles == nil {
		t.Error("profiles map not initialized")
	}
	if b.assignments == nil {
		t.Error("assignments map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New()

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return New()
	})
}

func TestSaveVesselsCopies(t *testing.T) {
	b := New()
	v := core.NewVessel("v", "s", "owner")
	if err := b.SaveVessels(context.Background(), []core.Vessel{*v}); err != nil {
		t.Fatalf("SaveVessels failed: %v", err)
	}

	v.CrewIDs[0] = "mutated"

	loaded, _ := b.LoadVessels(context.Background(), "s")
	if loaded[0].CrewIDs[0] != "owner" {
		t.Errorf("stored crew aliased caller slice: %v", loaded[0].CrewIDs)
	}
}

func TestLedger(t *testing.T) {
	b := New()
	ctx := context.Background()

	b.AdjustProfile(ctx, "u", core.Adjustment{Credits: 5, Reason: "bonus"}, nil)
	b.AdjustProfile(ctx, "u", core.Adjustment{}, nil)

	ledger := b.Ledger()
	if len(ledger) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(ledger))
	}
	if ledger[0].Adjustment.Reason != "bonus" {
		t.Errorf("expected reason bonus, got %s", ledger[0].Adjustment.Reason)
	}
}
