package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager tracks the live runners of this process. An applicant has at most
// one live attempt; registering a new one abandons the previous.
type Manager struct {
	mu          sync.RWMutex
	runners     map[uuid.UUID]*Runner
	byApplicant map[int]uuid.UUID

	idleTTL time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewManager creates a Manager reaping runners idle for longer than idleTTL.
func NewManager(idleTTL time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		runners:     make(map[uuid.UUID]*Runner),
		byApplicant: make(map[int]uuid.UUID),
		idleTTL:     idleTTL,
		now:         time.Now,
		log:         log.With().Str("component", "attempt_manager").Logger(),
	}
}

// Register adds a started runner.
func (m *Manager) Register(r *Runner) {
	m.mu.Lock()
	var previous *Runner
	if prevID, ok := m.byApplicant[r.Owner().ApplicantID]; ok {
		previous = m.runners[prevID]
		delete(m.runners, prevID)
	}
	m.runners[r.ID()] = r
	m.byApplicant[r.Owner().ApplicantID] = r.ID()
	m.mu.Unlock()

	if previous != nil {
		m.log.Info().
			Str("attempt_id", previous.ID().String()).
			Int("applicant_id", previous.Owner().ApplicantID).
			Msg("Previous attempt abandoned")
		previous.Close()
	}
}

// Get returns the runner for id.
func (m *Manager) Get(id uuid.UUID) (*Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runners[id]
	return r, ok
}

// ActiveFor returns the live attempt of an applicant.
func (m *Manager) ActiveFor(applicantID int) (*Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byApplicant[applicantID]
	if !ok {
		return nil, false
	}
	r, ok := m.runners[id]
	return r, ok
}

// Remove stops and forgets a runner. In-memory state is discarded.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	r, ok := m.runners[id]
	if ok {
		delete(m.runners, id)
		if m.byApplicant[r.Owner().ApplicantID] == id {
			delete(m.byApplicant, r.Owner().ApplicantID)
		}
	}
	m.mu.Unlock()

	if ok {
		r.Close()
	}
}

// Len returns the number of live runners.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runners)
}

// Reap removes runners idle since before now-idleTTL and returns how many.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.RLock()
	var stale []uuid.UUID
	for id, r := range m.runners {
		if r.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.Remove(id)
	}
	if len(stale) > 0 {
		m.log.Info().Int("count", len(stale)).Msg("Reaped idle attempts")
	}
	return len(stale)
}

// StartReaper runs Reap every interval until ctx is done.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Reap()
		}
	}
}

// Shutdown stops every runner.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	runners := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.runners = make(map[uuid.UUID]*Runner)
	m.byApplicant = make(map[int]uuid.UUID)
	m.mu.Unlock()

	for _, r := range runners {
		r.Close()
	}
	m.log.Info().Int("count", len(runners)).Msg("Attempt runners stopped")
}
