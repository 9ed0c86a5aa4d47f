// Package session provides the in-memory store and state machine for
// analysis sessions. A session spans one end-to-end pipeline run over a
// single instrument and is polled by clients while agents report in.
package session

import (
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusCreated means the session exists but the pipeline has not started.
	StatusCreated Status = "created"
	// StatusRunning means agents are executing.
	StatusRunning Status = "running"
	// StatusCompleted is terminal; partial agent failures do not prevent it.
	StatusCompleted Status = "completed"
	// StatusError is terminal and means the pipeline as a whole failed.
	StatusError Status = "error"
)

// AgentStatus is the lifecycle state of one agent within a session.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentRunning   AgentStatus = "running"
	AgentCompleted AgentStatus = "completed"
	AgentError     AgentStatus = "error"
)

// AgentResult is the recorded outcome of one agent's invocation.
// It is exclusively owned by its parent session.
type AgentResult struct {
	// AgentID names the agent this result belongs to.
	AgentID string `json:"agent_id"`
	// Status is the agent's lifecycle state.
	Status AgentStatus `json:"status"`
	// Output is the generated opinion text (empty until completed).
	Output string `json:"output,omitempty"`
	// Tokens is the upstream token usage, when the provider reported it.
	Tokens int `json:"tokens,omitempty"`
	// Thoughts are intermediate trace records, in order.
	Thoughts []string `json:"thoughts,omitempty"`
	// Citations are data-source references, in order.
	Citations []string `json:"citations,omitempty"`
	// Error holds the failure message for status "error".
	Error string `json:"error,omitempty"`
	// CompletedAt is when the agent reached a terminal state.
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Session represents one end-to-end analysis request.
type Session struct {
	// ID is the unique session identifier (time prefix + random suffix).
	ID string `json:"id"`
	// Subject is the instrument code under analysis (e.g. "600519").
	Subject string `json:"subject"`
	// DisplayName is an optional human-readable label.
	DisplayName string `json:"display_name,omitempty"`
	// Status is the lifecycle state.
	Status Status `json:"status"`
	// Progress is 0-100 and non-decreasing while running.
	Progress int `json:"progress"`
	// CurrentStage is the index of the stage most recently dispatched.
	CurrentStage int `json:"current_stage"`
	// CreatedAt is the creation timestamp; eviction is measured from it.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the last-activity timestamp.
	UpdatedAt time.Time `json:"updated_at"`
	// ErrorMessage holds the pipeline-level failure message, if any.
	ErrorMessage string `json:"error_message,omitempty"`
	// TotalAgents is the expected agent count, fixed at creation.
	TotalAgents int `json:"total_agents"`

	// Results maps agent id to its recorded outcome.
	Results map[string]*AgentResult `json:"results"`
	// CompletedAgents lists agent ids that reached "completed", in order.
	CompletedAgents []string `json:"completed_agents"`
}

// AgentUpdate carries one agent's outcome into the store. Zero-valued
// optional fields leave the stored result's corresponding field empty.
type AgentUpdate struct {
	Status    AgentStatus
	Output    string
	Tokens    int
	Thoughts  []string
	Citations []string
	Error     string

	// Progress, when non-nil, overrides the automatic per-agent-count
	// progress computation for this update only.
	Progress *int
	// Stage, when non-nil, records the current stage index.
	Stage *int
}

// StatusView is the read-only polling snapshot of a session.
type StatusView struct {
	SessionID       string   `json:"session_id"`
	Subject         string   `json:"subject"`
	DisplayName     string   `json:"display_name,omitempty"`
	Status          Status   `json:"status"`
	Progress        int      `json:"progress"`
	CurrentStage    int      `json:"current_stage"`
	CompletedAgents []string `json:"completed_agents"`
	TotalAgents     int      `json:"total_agents"`
	StartedAt       string   `json:"started_at"`
	ElapsedSeconds  float64  `json:"elapsed_seconds"`
	ErrorMessage    string   `json:"error_message,omitempty"`
}
