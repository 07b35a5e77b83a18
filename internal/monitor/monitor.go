// Package monitor periodically samples engine statistics into a status file
// and the metrics sink.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/sitac/internal/engine"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// Measurement is the influx measurement holding engine samples
const Measurement = "engine_stats"

// PointWriter receives samples. *influx.Manager implements it.
type PointWriter interface {
	WritePoint(*influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Document func() string
	Stats    func() engine.Stats
	// Writer is optional
	Writer     PointWriter
	StatusPath string
	Interval   time.Duration
	Log        zerolog.Logger
}

// Status is what the status file holds.
type Status struct {
	Time      time.Time `json:"time"`
	Document  string    `json:"document"`
	Mode      string    `json:"mode"`
	Renderer  string    `json:"renderer"`
	Features  int       `json:"features"`
	History   int       `json:"history"`
	Redo      int       `json:"redo"`
	Snapshots int       `json:"snapshots"`
	Pending   int       `json:"pending"`
	Zoom      float64   `json:"zoom"`
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Sample reads the current status.
func (s *Service) Sample() Status {
	st := s.deps.Stats()
	doc := ""
	if s.deps.Document != nil {
		doc = s.deps.Document()
	}
	return Status{
		Time:      time.Now().UTC(),
		Document:  doc,
		Mode:      string(st.Mode),
		Renderer:  string(st.Renderer),
		Features:  st.Features,
		History:   st.History,
		Redo:      st.Redo,
		Snapshots: st.Snapshots,
		Pending:   st.Pending,
		Zoom:      st.Zoom,
	}
}

// Point converts a status into an influx point.
func Point(st Status) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(Measurement,
		map[string]string{
			"document": st.Document,
			"mode":     st.Mode,
			"renderer": st.Renderer,
		},
		map[string]any{
			"features":  st.Features,
			"history":   st.History,
			"redo":      st.Redo,
			"snapshots": st.Snapshots,
			"pending":   st.Pending,
			"zoom":      st.Zoom,
		},
		st.Time,
	)
}

// Tick takes one sample and records it.
func (s *Service) Tick() error {
	st := s.Sample()
	if s.deps.StatusPath != "" {
		if err := writeStatus(s.deps.StatusPath, st); err != nil {
			return err
		}
	}
	if s.deps.Writer != nil {
		if err := s.deps.Writer.WritePoint(Point(st)); err != nil {
			return fmt.Errorf("writing engine stats: %w", err)
		}
	}
	return nil
}

func writeStatus(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		s.deps.Log.Debug().Dur("interval", s.deps.Interval).Msg("Starting status monitor")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Tick(); err != nil {
					s.deps.Log.Error().Err(err).Msg("Status monitor tick failed")
				}
			}
		}
	}(s.stopChan, s.done)
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
