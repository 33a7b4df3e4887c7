// Package worker persists vessel records behind the registry. Pose updates
// mark vessels dirty and are flushed on a debounce; admin mutations bypass it.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/queue"
	"github.com/OCAP2/helmsync/pkg/core"
)

// Store is the part of storage.Backend the worker writes to.
type Store interface {
	SaveVessels(ctx context.Context, vessels []core.Vessel) error
	DeleteVessel(ctx context.Context, vesselID string) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Store      Store
	LogManager *logging.SlogManager
	Debounce   time.Duration
}

// Manager batches vessel writes.
type Manager struct {
	deps    Dependencies
	pending *queue.Coalescing[string, core.Vessel]

	// serializes flushes with immediate writes so a stale pending copy
	// never lands after a newer one
	writeMu sync.Mutex

	lastWrite atomic.Int64
	written   atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Debounce <= 0 {
		deps.Debounce = 2 * time.Second
	}
	return &Manager{
		deps:    deps,
		pending: queue.New(func(v core.Vessel) string { return v.ID }),
	}
}

// MarkDirty queues a copy of v for the next flush.
func (m *Manager) MarkDirty(v *core.Vessel) {
	if v == nil {
		return
	}
	m.pending.Put(*v.Clone())
}

// Pending returns the number of dirty vessels.
func (m *Manager) Pending() int {
	return m.pending.Len()
}

// Flush writes the latest queued copy of every dirty vessel.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	batch := m.pending.Drain()
	if len(batch) == 0 {
		return 0, nil
	}
	if err := m.save(ctx, batch); err != nil {
		m.pending.Requeue(batch)
		return 0, err
	}
	return len(batch), nil
}

// PersistNow writes v immediately and drops any queued copy of it.
func (m *Manager) PersistNow(ctx context.Context, v *core.Vessel) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.pending.Remove(v.ID)
	return m.save(ctx, []core.Vessel{*v.Clone()})
}

// Forget deletes a vessel record and drops any queued copy of it.
func (m *Manager) Forget(ctx context.Context, vesselID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.pending.Remove(vesselID)
	if err := m.deps.Store.DeleteVessel(ctx, vesselID); err != nil {
		return fmt.Errorf("delete vessel %s: %w", vesselID, err)
	}
	return nil
}

// Run flushes every Debounce until ctx is done, then flushes once more.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.deps.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := m.Flush(final); err != nil {
				m.deps.LogManager.Logger().Error("Final vessel flush failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			n, err := m.Flush(ctx)
			if err != nil {
				m.deps.LogManager.Logger().Error("Vessel flush failed", "error", err, "pending", m.Pending())
				continue
			}
			if n > 0 {
				m.deps.LogManager.Logger().Debug("Vessels flushed", "count", n)
			}
		}
	}
}

// GetLastDBWriteDuration returns the duration of the last write.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}

// Written returns the number of vessel rows written so far.
func (m *Manager) Written() int64 {
	return m.written.Load()
}

func (m *Manager) save(ctx context.Context, batch []core.Vessel) error {
	start := time.Now()
	err := m.deps.Store.SaveVessels(ctx, batch)
	m.lastWrite.Store(int64(time.Since(start)))
	if err != nil {
		return fmt.Errorf("save %d vessels: %w", len(batch), err)
	}
	m.written.Add(int64(len(batch)))
	return nil
}
