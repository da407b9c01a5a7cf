package measurement

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"goflare.io/foldscope/pkg/geometry"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithIDFunc overrides how measurement ids are generated.
func WithIDFunc(fn func(Kind) string) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithObserver registers a callback invoked for every completed measurement.
func WithObserver(fn func(Measurement)) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// Session accumulates pick points for one view and collects the finished measurements.
// It is safe for concurrent use; picks are applied one at a time.
type Session struct {
	mu        sync.Mutex
	kind      Kind
	pending   []geometry.Point3D
	completed []Measurement
	newID     func(Kind) string
	observers []func(Measurement)
}

// NewSession creates a session collecting measurements of the given kind.
func NewSession(kind Kind, opts ...SessionOption) (*Session, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown measurement kind %q", ErrInvalidInput, kind)
	}

	s := &Session{
		kind:  kind,
		newID: defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func defaultID(kind Kind) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}

// SetMode switches the measurement kind and discards any pending points.
func (s *Session) SetMode(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown measurement kind %q", ErrInvalidInput, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.kind = kind
	s.pending = nil
	return nil
}

// Mode returns the active measurement kind.
func (s *Session) Mode() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// AddPoint records a pick. When the point completes the active kind, the new
// measurement is stored and returned; otherwise it returns nil.
// On error the pending points are left exactly as they were before the call.
func (s *Session) AddPoint(p geometry.Point3D) (*Measurement, error) {
	if !p.IsFinite() {
		return nil, fmt.Errorf("%w: pick point %v is not finite", ErrInvalidInput, p)
	}

	s.mu.Lock()

	points := make([]geometry.Point3D, len(s.pending), len(s.pending)+1)
	copy(points, s.pending)
	points = append(points, p)

	if len(points) < s.kind.Arity() {
		s.pending = points
		s.mu.Unlock()
		return nil, nil
	}

	value, err := Compute(s.kind, points)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	m := Measurement{
		ID:     s.newID(s.kind),
		Kind:   s.kind,
		Points: points,
		Value:  value,
		Label:  FormatLabel(s.kind, value),
	}
	s.completed = append(s.completed, m)
	s.pending = nil
	observers := s.observers
	s.mu.Unlock()

	for _, notify := range observers {
		notify(m.clone())
	}

	out := m.clone()
	return &out, nil
}

// Pending returns a copy of the points collected so far.
func (s *Session) Pending() []geometry.Point3D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geometry.Point3D(nil), s.pending...)
}

// Completed returns the finished measurements in completion order.
func (s *Session) Completed() []Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Measurement, len(s.completed))
	for i, m := range s.completed {
		out[i] = m.clone()
	}
	return out
}

// RemoveMeasurement drops the measurement with the given id. Unknown ids are ignored.
func (s *Session) RemoveMeasurement(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.completed {
		if m.ID == id {
			s.completed = append(s.completed[:i:i], s.completed[i+1:]...)
			return
		}
	}
}

// Reset clears pending points and completed measurements.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.completed = nil
}

// Status describes collection progress, e.g. "Select three points (1/3)".
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	word := "two"
	if s.kind.Arity() == 3 {
		word = "three"
	}
	return fmt.Sprintf("Select %s points (%d/%d)", word, len(s.pending), s.kind.Arity())
}
