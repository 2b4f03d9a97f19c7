package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an asynchronous task.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusStarted    TaskStatus = "started"
	StatusProcessing TaskStatus = "processing"
	StatusRetrying   TaskStatus = "retrying"
	StatusSuccess    TaskStatus = "success"
	StatusFailure    TaskStatus = "failure"
)

// Terminal reports whether the status is final. Terminal statuses are immutable.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// transitions lists the allowed moves of the task state machine:
// queued → started → processing → {success | failure | retrying → processing}.
// queued → failure covers tasks whose enqueue never succeeded.
var transitions = map[TaskStatus][]TaskStatus{
	StatusQueued:     {StatusStarted, StatusFailure},
	StatusStarted:    {StatusProcessing, StatusFailure},
	StatusProcessing: {StatusSuccess, StatusFailure, StatusRetrying},
	StatusRetrying:   {StatusProcessing, StatusFailure},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTaskID is returned for identifiers not matching "<kind>:<uuid>".
var ErrInvalidTaskID = errors.New("invalid task id")

// TaskID identifies a task. The format "<kind>:<uuid-v4>" is part of the public
// contract: the kind prefix namespaces identifiers across transformation types.
type TaskID string

// NewTaskID mints a fresh identifier for the given task kind.
func NewTaskID(kind string) TaskID {
	return TaskID(fmt.Sprintf("%s:%s", kind, uuid.New()))
}

// Kind returns the kind prefix of the identifier.
func (id TaskID) Kind() string {
	kind, _, _ := strings.Cut(string(id), ":")
	return kind
}

// ParseTaskID validates the "<kind>:<uuid-v4>" format. Only the plain
// 36-character uuid form is accepted; urn:uuid: and braced variants, and
// uuid versions other than 4, are rejected.
func ParseTaskID(s string) (TaskID, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || kind == "" || len(rest) != 36 {
		return "", ErrInvalidTaskID
	}
	u, err := uuid.Parse(rest)
	if err != nil || u.Version() != 4 {
		return "", ErrInvalidTaskID
	}
	return TaskID(s), nil
}

// Task is a unit of asynchronous work tracked by the status store.
type Task struct {
	ID          TaskID          `json:"id"`
	Kind        string          `json:"kind"`
	Status      TaskStatus      `json:"status"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result,omitempty"` // present only on success
	CreatedAt   time.Time       `json:"created_at"`
}
