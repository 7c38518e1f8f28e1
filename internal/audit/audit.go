// Package audit provides structured event logging for instance lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per instance.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventStart   EventType = "start"
	EventReady   EventType = "ready"
	EventSuspend EventType = "suspend"
	EventExit    EventType = "exit"
	EventError   EventType = "error"
	EventHealth  EventType = "health"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         EventType `json:"type"`
	Instance     string    `json:"instance"`
	ActivationID string    `json:"activationId,omitempty"`
	Details      string    `json:"details,omitempty"`
}

// Logger writes and reads audit events for instances.
// Events are stored in {stateDir}/events/{instance}.jsonl.
type Logger struct {
	stateDir string
	mu       sync.Mutex
}

// NewLogger creates a new audit logger rooted at stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{stateDir: stateDir}
}

// eventPath returns the path to the JSONL event log for an instance.
func (l *Logger) eventPath(instance string) (string, error) {
	return securejoin.SecureJoin(filepath.Join(l.stateDir, "events"), instance+".jsonl")
}

// Log appends an event to the instance's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	path, err := l.eventPath(event.Instance)
	if err != nil {
		return fmt.Errorf("invalid audit log path: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, instance, activationID, details string) error {
	return l.Log(Event{
		Timestamp:    time.Now(),
		Type:         eventType,
		Instance:     instance,
		ActivationID: activationID,
		Details:      details,
	})
}

// Events reads all events for an instance in chronological order.
func (l *Logger) Events(instance string) ([]Event, error) {
	path, err := l.eventPath(instance)
	if err != nil {
		return nil, fmt.Errorf("invalid audit log path: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}

// Tail returns the last n events for an instance.
func (l *Logger) Tail(instance string, n int) ([]Event, error) {
	events, err := l.Events(instance)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
