package model

import "time"

// Progress entry status constants. A failed or completed entry is terminal
// for its task; callers must stop polling once they see one.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TerminalStatus reports whether a progress status ends the task.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// ProgressEntry is one immutable record in a task's append-only progress log.
type ProgressEntry struct {
	Seq       int       `json:"seq"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
