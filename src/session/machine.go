package session

import (
	"errors"
	"fmt"
	"sync"

	"cad-lingo/src/analysis"
	"cad-lingo/src/imageinput"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// State is the phase of the capture → analyze → show cycle.
type State int

const (
	Idle State = iota
	Capturing
	Analyzing
	Results
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Capturing:
		return "CAPTURING"
	case Analyzing:
		return "ANALYZING"
	case Results:
		return "RESULTS"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is an immutable view of the machine.
type Snapshot struct {
	State   State
	Image   *imageinput.Image
	Results []analysis.Result
	Err     error
}

// Machine holds the current session state. All methods are safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	snap      Snapshot
	observers []func(Snapshot)
}

func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Machine) State() State {
	return m.Snapshot().State
}

// OnChange registers fn to receive every new snapshot. fn runs on the goroutine
// that made the transition, after the lock is released.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// BeginCapture: Idle|Results|Error → Capturing.
func (m *Machine) BeginCapture() error {
	return m.transition(Capturing, func(s State) bool {
		return s == Idle || s == Results || s == Error
	}, func(snap *Snapshot) {
		snap.Err = nil
	})
}

// CancelCapture: Capturing → Idle.
func (m *Machine) CancelCapture() error {
	return m.transition(Idle, func(s State) bool { return s == Capturing }, nil)
}

// Submit stores img and starts analysis from any state except Analyzing.
func (m *Machine) Submit(img imageinput.Image) error {
	return m.transition(Analyzing, func(s State) bool { return s != Analyzing }, func(snap *Snapshot) {
		snap.Image = &img
		snap.Results = nil
		snap.Err = nil
	})
}

// Complete: Analyzing → Results.
func (m *Machine) Complete(results []analysis.Result) error {
	return m.transition(Results, func(s State) bool { return s == Analyzing }, func(snap *Snapshot) {
		snap.Results = results
	})
}

// Fail: Analyzing|Capturing → Error.
func (m *Machine) Fail(err error) error {
	return m.transition(Error, func(s State) bool {
		return s == Analyzing || s == Capturing
	}, func(snap *Snapshot) {
		snap.Err = err
	})
}

// Reset returns to Idle from any state, dropping the image and results.
func (m *Machine) Reset() {
	_ = m.transition(Idle, func(State) bool { return true }, func(snap *Snapshot) {
		snap.Image = nil
		snap.Results = nil
		snap.Err = nil
	})
}

func (m *Machine) transition(to State, allowed func(State) bool, mutate func(*Snapshot)) error {
	m.mu.Lock()
	from := m.snap.State
	if !allowed(from) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	m.snap.State = to
	if mutate != nil {
		mutate(&m.snap)
	}
	snap := m.snap
	observers := append(([]func(Snapshot))(nil), m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return nil
}
