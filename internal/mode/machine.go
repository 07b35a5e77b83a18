package mode

import (
	"log/slog"
	"sync"
)

// Machine owns a State and applies events to it one at a time.
type Machine struct {
	mu     sync.Mutex
	state  State
	env    Env
	logger *slog.Logger
}

// NewMachine creates a Machine in view mode.
func NewMachine(env Env, cfg Config, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{state: NewState(cfg), env: env, logger: logger}
}

// Handle applies e and returns the effects to perform.
func (m *Machine) Handle(e Event) []Effect {
	m.mu.Lock()
	prev := m.state.Mode
	next, effects := Step(m.state, e, m.env)
	m.state = next
	m.mu.Unlock()

	// log handlers may read the mode back
	if next.Mode != prev {
		m.logger.Debug("Mode changed", "from", prev, "to", next.Mode)
	}
	return effects
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode {
	return m.State().Mode
}
