package uistore

import (
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMerge_IsPure(t *testing.T) {
	base := Snapshot{RPM: 100, Fuel: 0.5}
	got := Merge(base, Update{RPM: ptr(200.0)})

	assert.Equal(t, 100.0, base.RPM, "input unchanged")
	assert.Equal(t, 200.0, got.RPM)
	assert.Equal(t, 0.5, got.Fuel, "untouched field kept")
	assert.Equal(t, uint64(1), got.Version)
}

func TestMerge_Timestamp(t *testing.T) {
	at := time.Unix(100, 0)
	got := Merge(Snapshot{}, Update{At: at})
	assert.Equal(t, at, got.UpdatedAt)

	again := Merge(got, Update{})
	assert.Equal(t, at, again.UpdatedAt)
}

func TestSnapshot_AtRest(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		expected bool
	}{
		{"zero", Snapshot{}, true},
		{"heading only", Snapshot{Orientation: core.Orientation{Heading: 1}}, true},
		{"moved", Snapshot{Position: core.Position{X: 5}}, false},
		{"moving", Snapshot{Velocity: core.Velocity{Surge: 0.2}}, false},
		{"throttle", Snapshot{Controls: core.Controls{Throttle: 0.1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.snap.AtRest())
		})
	}
}

func TestStore_ConcurrentProducersKeepFields(t *testing.T) {
	s := New(Snapshot{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Apply(Update{RPM: ptr(300.0)})
		}()
		go func() {
			defer wg.Done()
			s.Apply(Update{Controls: &core.Controls{Throttle: 0.4}})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 300.0, snap.RPM)
	assert.Equal(t, 0.4, snap.Controls.Throttle)
	assert.Equal(t, uint64(200), snap.Version)
}

func TestStore_Subscribe(t *testing.T) {
	s := New(Snapshot{})
	ch, cancel := s.Subscribe(4)

	s.Apply(Update{Fuel: ptr(0.9)})
	select {
	case snap := <-ch:
		assert.Equal(t, 0.9, snap.Fuel)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := New(Snapshot{})
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		s.Apply(Update{RPM: ptr(float64(i))})
	}
	require.Equal(t, 9.0, s.Snapshot().RPM)

	// the single slot holds the newest snapshot
	snap := <-ch
	assert.Equal(t, 9.0, snap.RPM)
}

func TestStore_ReplaceKeepsVersionMonotonic(t *testing.T) {
	s := New(Snapshot{})
	s.Apply(Update{})
	got := s.Replace(Snapshot{VesselID: "v1", Version: 0})
	assert.Equal(t, "v1", got.VesselID)
	assert.Equal(t, uint64(2), got.Version)
}
