package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for store operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidState is returned on an illegal lifecycle transition.
	ErrInvalidState = errors.New("invalid session state")
)

// DefaultIdleTimeout is how long a session survives after creation before
// the sweep reclaims it.
const DefaultIdleTimeout = time.Hour

// Store is the process-wide table of in-flight and recently finished
// sessions. All mutation goes through its narrow operations; the map is
// never handed out. Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTimeout overrides the eviction timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithClock injects a time source, used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newSessionID builds an id with a coarse time prefix for ordering and a
// random suffix for collision avoidance.
func (s *Store) newSessionID() string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("fs-%d-%s", s.now().Unix(), suffix)
}

// Create registers a new session in state "created" with progress 0.
// The expected agent count is fixed for the session's lifetime.
// Expired sessions are swept opportunistically before insertion.
func (s *Store) Create(subject, displayName string, totalAgents int) *Session {
	s.Sweep()

	now := s.now().UTC()
	sess := &Session{
		ID:              s.newSessionID(),
		Subject:         subject,
		DisplayName:     displayName,
		Status:          StatusCreated,
		Progress:        0,
		CreatedAt:       now,
		UpdatedAt:       now,
		TotalAgents:     totalAgents,
		Results:         make(map[string]*AgentResult),
		CompletedAgents: make([]string, 0),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Start transitions a session from "created" to "running".
func (s *Store) Start(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusCreated {
		return fmt.Errorf("%w: cannot start session in state %q", ErrInvalidState, sess.Status)
	}

	sess.Status = StatusRunning
	sess.UpdatedAt = s.now().UTC()
	return nil
}

// Update records one agent's outcome and recomputes progress.
//
// Progress precedence: an explicit upd.Progress value is used verbatim for
// this update; otherwise progress is floor(completed/total*100). A later
// update without an override recomputes automatically, replacing any prior
// override. Updates are accepted regardless of session status; a late update
// after Complete is stored but is a caller error in the driver.
func (s *Store) Update(sessionID, agentID string, upd AgentUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	result := &AgentResult{
		AgentID:   agentID,
		Status:    upd.Status,
		Output:    upd.Output,
		Tokens:    upd.Tokens,
		Thoughts:  upd.Thoughts,
		Citations: upd.Citations,
		Error:     upd.Error,
	}
	if upd.Status == AgentCompleted || upd.Status == AgentError {
		result.CompletedAt = now
	}
	sess.Results[agentID] = result

	if upd.Status == AgentCompleted && !contains(sess.CompletedAgents, agentID) {
		sess.CompletedAgents = append(sess.CompletedAgents, agentID)
	}

	// Progress never decreases: both the automatic recomputation and an
	// explicit override only ratchet forward.
	next := sess.Progress
	if upd.Progress != nil {
		next = clampProgress(*upd.Progress)
	} else if sess.TotalAgents > 0 {
		next = len(sess.CompletedAgents) * 100 / sess.TotalAgents
	}
	if next > sess.Progress {
		sess.Progress = next
	}
	if upd.Stage != nil {
		sess.CurrentStage = *upd.Stage
	}
	sess.UpdatedAt = now

	return sess.Progress, nil
}

// Complete moves a session to a terminal state. On success, progress is
// forced to 100 regardless of how many agents reported.
func (s *Store) Complete(sessionID string, success bool, errorMessage string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return "", err
	}

	if success {
		sess.Status = StatusCompleted
		sess.Progress = 100
	} else {
		sess.Status = StatusError
		sess.ErrorMessage = errorMessage
	}
	sess.UpdatedAt = s.now().UTC()

	return sess.Status, nil
}

// GetStatus returns a polling snapshot of a session.
func (s *Store) GetStatus(sessionID string) (*StatusView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}

	completed := make([]string, len(sess.CompletedAgents))
	copy(completed, sess.CompletedAgents)

	return &StatusView{
		SessionID:       sess.ID,
		Subject:         sess.Subject,
		DisplayName:     sess.DisplayName,
		Status:          sess.Status,
		Progress:        sess.Progress,
		CurrentStage:    sess.CurrentStage,
		CompletedAgents: completed,
		TotalAgents:     sess.TotalAgents,
		StartedAt:       sess.CreatedAt.Format(time.RFC3339),
		ElapsedSeconds:  s.now().UTC().Sub(sess.CreatedAt).Seconds(),
		ErrorMessage:    sess.ErrorMessage,
	}, nil
}

// GetAgentResult returns the recorded result for one agent. An agent that
// has not reported yet yields a synthetic pending placeholder, never an
// error, so pollers can safely query agents that have not started.
func (s *Store) GetAgentResult(sessionID, agentID string) (*AgentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}

	result, ok := sess.Results[agentID]
	if !ok {
		return &AgentResult{AgentID: agentID, Status: AgentPending}, nil
	}

	cp := *result
	return &cp, nil
}

// CompletedOutputs returns agent id → output text for every completed agent.
// The scheduler feeds these to downstream stages.
func (s *Store) CompletedOutputs(sessionID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]string, len(sess.CompletedAgents))
	for _, id := range sess.CompletedAgents {
		if r, ok := sess.Results[id]; ok {
			outputs[id] = r.Output
		}
	}
	return outputs, nil
}

// List returns status snapshots for every live session.
func (s *Store) List() []*StatusView {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	views := make([]*StatusView, 0, len(ids))
	for _, id := range ids {
		if v, err := s.GetStatus(id); err == nil {
			views = append(views, v)
		}
	}
	return views
}

// Delete removes a session immediately.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Sweep removes every session older than the idle timeout, regardless of
// status, and returns the number removed. Invoked lazily on Create and
// periodically as a maintenance hook.
func (s *Store) Sweep() int {
	cutoff := s.now().UTC().Add(-s.idleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookupLocked resolves a session id under the caller's lock, treating
// expired entries as absent.
func (s *Store) lookupLocked(sessionID string) (*Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.now().UTC().Sub(sess.CreatedAt) > s.idleTimeout {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
