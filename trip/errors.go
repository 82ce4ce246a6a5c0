// Package trip provides error handling for posecam capture sessions.
//
// The trip package uses stumbling metaphors for capture error handling - when the
// tracking runtime misbehaves, a capture "stumbles" (degraded tracking, premature
// queries), "trips" (the runtime asks the session to stop) or "falls" (a fatal
// failure such as a missing runtime capability).
package trip

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Trip represents an error during a capture session with rich context.
//
// Error types used by posecam:
//   - "capability": the runtime lacks a required extension
//   - "runtime": a runtime call failed or returned an unexpected result
//   - "session": the runtime signalled loss or sent events for a foreign session
//   - "tracking": a located pose was missing its valid bits
//   - "timing": a pose was requested before frame timing was established
//
// Example usage:
//
//	err := NewFall("capability", "HTC VIVE is unsupported in this version of OpenXR",
//	    Context{"missing": []string{"XR_EXT_hand_tracking"}})
//
//	if err.CanRecover() {
//	    // keep capturing
//	}
type Trip struct {
	Type      string    // Error category for systematic handling
	Message   string    // Human-readable description
	Context   Context   // Additional debugging information
	Timestamp time.Time // When the error occurred
	Severity  Severity  // How serious this error is
	cause     error
}

// Context provides structured debugging information for trips.
type Context map[string]interface{}

// Severity indicates how serious a trip is and how it should be handled.
type Severity int

const (
	// Stumble indicates a degraded condition that never stops a capture.
	// Examples: lost tracking bits, pose requested before initial time
	Stumble Severity = iota

	// Error indicates the runtime asked the session to wind down.
	// Examples: instance loss pending, events for a foreign session
	Error

	// Fall indicates a fatal failure that terminates the capture.
	// Examples: missing extension, unexpected event read result
	Fall
)

func (s Severity) String() string {
	switch s {
	case Stumble:
		return "stumble"
	case Error:
		return "error"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// NewTrip creates a new trip with the current timestamp.
func NewTrip(errorType, message string, context Context) *Trip {
	return &Trip{
		Type:      errorType,
		Message:   message,
		Context:   context,
		Timestamp: time.Now(),
		Severity:  Error, // Default severity
	}
}

// NewStumble creates a new trip with Stumble severity.
func NewStumble(errorType, message string, context Context) *Trip {
	return NewTrip(errorType, message, context).WithSeverity(Stumble)
}

// NewFall creates a new trip with Fall severity.
func NewFall(errorType, message string, context Context) *Trip {
	return NewTrip(errorType, message, context).WithSeverity(Fall)
}

// WithSeverity sets the severity level for this error.
func (t *Trip) WithSeverity(severity Severity) *Trip {
	t.Severity = severity
	return t
}

// WithCause attaches the underlying error, exposed through Unwrap.
func (t *Trip) WithCause(err error) *Trip {
	t.cause = err
	return t
}

// Error implements the error interface.
func (t *Trip) Error() string {
	if t.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", t.Type, t.Severity, t.Message, t.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", t.Type, t.Severity, t.Message)
}

// Unwrap returns the underlying cause, if any.
func (t *Trip) Unwrap() error {
	return t.cause
}

// CanRecover returns true if capturing can continue despite this error.
func (t *Trip) CanRecover() bool {
	return t.Severity == Stumble
}

// IsFall returns true if this error should immediately stop capturing.
func (t *Trip) IsFall() bool {
	return t.Severity == Fall
}

// GetContext returns a specific context value if it exists.
func (t *Trip) GetContext(key string) (interface{}, bool) {
	if t.Context == nil {
		return nil, false
	}
	val, exists := t.Context[key]
	return val, exists
}

// DetailedString returns a comprehensive error description with context.
func (t *Trip) DetailedString() string {
	var details strings.Builder

	details.WriteString(t.Error())
	details.WriteString(fmt.Sprintf("\n  Time: %s", t.Timestamp.Format("15:04:05.000")))

	if len(t.Context) > 0 {
		keys := make([]string, 0, len(t.Context))
		for key := range t.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		details.WriteString("\n  Context:")
		for _, key := range keys {
			details.WriteString(fmt.Sprintf("\n    %s: %v", key, t.Context[key]))
		}
	}

	return details.String()
}

// Handler collects trips raised by one component during a capture.
//
// Stumbles are counted per type rather than stored individually: a capture with
// the controllers out of view produces one per frame and hand.
type Handler struct {
	component  string
	mu         sync.Mutex
	trips      []*Trip
	stumbles   map[string]int
	lastByType map[string]*Trip
	policy     *Policy
}

// Policy defines how trips affect a running capture.
type Policy struct {
	// StopOnFall determines if capturing should stop once a fall was recorded
	StopOnFall bool

	// StopOnError determines if capturing should stop once an error was recorded
	StopOnError bool
}

// DefaultPolicy returns the capture policy: falls stop, everything else is logged.
func DefaultPolicy() *Policy {
	return &Policy{
		StopOnFall:  true,
		StopOnError: false,
	}
}

// NewHandler creates a new error handler for a specific component.
func NewHandler(component string, policy *Policy) *Handler {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Handler{
		component:  component,
		trips:      make([]*Trip, 0),
		stumbles:   make(map[string]int),
		lastByType: make(map[string]*Trip),
		policy:     policy,
	}
}

// Record adds a trip to the handler's collection and returns it.
func (h *Handler) Record(trip *Trip) *Trip {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastByType[trip.Type] = trip
	if trip.Severity == Stumble {
		h.stumbles[trip.Type]++
	} else {
		h.trips = append(h.trips, trip)
	}
	return trip
}

// ShouldContinue determines if capturing should continue based on recorded trips.
func (h *Handler) ShouldContinue() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, trip := range h.trips {
		if trip.IsFall() && h.policy.StopOnFall {
			return false
		}
		if trip.Severity == Error && h.policy.StopOnError {
			return false
		}
	}
	return true
}

// HasTrips returns true if any errors (non-stumbles) have been recorded.
func (h *Handler) HasTrips() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.trips) > 0
}

// HasStumbles returns true if any stumbles have been recorded.
func (h *Handler) HasStumbles() bool {
	return h.StumbleCount() > 0
}

// StumbleCount returns the total number of stumbles across all types.
func (h *Handler) StumbleCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, n := range h.stumbles {
		total += n
	}
	return total
}

// GetTrips returns a copy of all recorded errors.
func (h *Handler) GetTrips() []*Trip {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Trip(nil), h.trips...)
}

// Last returns the most recent trip of the given type.
func (h *Handler) Last(errorType string) (*Trip, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	trip, ok := h.lastByType[errorType]
	return trip, ok
}

// Summary provides a concise overview of all errors and stumbles.
func (h *Handler) Summary() string {
	trips := len(h.GetTrips())
	stumbles := h.StumbleCount()

	if trips == 0 && stumbles == 0 {
		return fmt.Sprintf("[%s] No issues during capture", h.component)
	}

	return fmt.Sprintf("[%s] %d trips, %d stumbles", h.component, trips, stumbles)
}

// DetailedReport provides a comprehensive report of all issues.
func (h *Handler) DetailedReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("=== %s Component Report ===\n", h.component))
	report.WriteString(h.Summary() + "\n")

	trips := h.GetTrips()
	if len(trips) > 0 {
		report.WriteString("\nTrips:\n")
		for i, trip := range trips {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, trip.DetailedString()))
		}
	}

	h.mu.Lock()
	types := make([]string, 0, len(h.stumbles))
	for errorType := range h.stumbles {
		types = append(types, errorType)
	}
	sort.Strings(types)
	if len(types) > 0 {
		report.WriteString("\nStumbles:\n")
		for _, errorType := range types {
			last := h.lastByType[errorType]
			report.WriteString(fmt.Sprintf("- %s x%d (last: %s)\n", errorType, h.stumbles[errorType], last.Message))
		}
	}
	h.mu.Unlock()

	return report.String()
}
