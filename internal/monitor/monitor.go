package monitor

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/helmsync/internal/cache"
	"github.com/OCAP2/helmsync/internal/influx"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/registry"
	"github.com/OCAP2/helmsync/pkg/core"
)

// Writer is the persistence side the monitor reports on.
type Writer interface {
	Pending() int
	Written() int64
	GetLastDBWriteDuration() time.Duration
}

// Telemetry receives points. *influx.Manager implements it.
type Telemetry interface {
	WriteVessels(ctx context.Context, vessels []core.Vessel, at time.Time) error
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Registry    *registry.Registry
	Writer      Writer
	Connections *cache.SafeCounter
	Influx      Telemetry
	LogManager  *logging.SlogManager
	StatusFile  string
	Interval    time.Duration
	Now         func() time.Time
}

// Status is one sample of the server's health.
type Status struct {
	Time                time.Time      `json:"time"`
	Connections         int            `json:"connections"`
	Vessels             map[string]int `json:"vessels"`
	PendingWrites       int            `json:"pendingWrites"`
	Written             int64          `json:"written"`
	LastWriteDurationMs float64        `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Connections == nil {
		deps.Connections = &cache.SafeCounter{}
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the current state.
func (s *Service) GetStatus() Status {
	st := Status{
		Time:        s.deps.Now(),
		Connections: s.deps.Connections.Value(),
		Vessels:     make(map[string]int),
	}
	if s.deps.Registry != nil {
		for _, space := range s.deps.Registry.Spaces() {
			st.Vessels[space.ID] = space.Len()
		}
	}
	if s.deps.Writer != nil {
		st.PendingWrites = s.deps.Writer.Pending()
		st.Written = s.deps.Writer.Written()
		st.LastWriteDurationMs = float64(s.deps.Writer.GetLastDBWriteDuration().Microseconds()) / 1000
	}
	return st
}

// Tick samples once, rewrites the status file and pushes telemetry.
func (s *Service) Tick(ctx context.Context) Status {
	logger := s.deps.LogManager.Logger()
	st := s.GetStatus()

	if s.deps.StatusFile != "" {
		data, err := json.MarshalIndent(st, "", "  ")
		if err == nil {
			err = os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0o644)
		}
		if err != nil {
			logger.Error("Error writing status file", "path", s.deps.StatusFile, "error", err)
		}
	}

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(ctx, influx.BucketPerformance, statusPoint(st)); err != nil {
			logger.Error("Error writing status point", "error", err)
		}
		if s.deps.Registry != nil {
			for _, space := range s.deps.Registry.Spaces() {
				if err := s.deps.Influx.WriteVessels(ctx, space.Vessels(), st.Time); err != nil {
					logger.Error("Error writing vessel telemetry", "space", space.ID, "error", err)
				}
			}
		}
	}

	logger.Debug("Status", "connections", st.Connections, "pendingWrites", st.PendingWrites, "lastWriteMs", st.LastWriteDurationMs)
	return st
}

func statusPoint(st Status) *influxdb2_write.Point {
	vessels := 0
	for _, n := range st.Vessels {
		vessels += n
	}
	return influxdb2.NewPoint("server_status",
		map[string]string{},
		map[string]any{
			"connections":         st.Connections,
			"vessels":             vessels,
			"pending_writes":      st.PendingWrites,
			"written":             st.Written,
			"last_write_duration": st.LastWriteDurationMs,
		},
		st.Time,
	)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Tick(context.Background())
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
