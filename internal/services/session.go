package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/nebo/pkg/metrics"
	"github.com/valpere/nebo/pkg/weather"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatTurn struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// SessionState is everything one chat or API client sees. Snapshot is shared
// between copies because snapshots are immutable; Transcript is copied.
type SessionState struct {
	ID           string           `json:"id"`
	Unit         weather.Unit     `json:"unit"`
	Transcript   []ChatTurn       `json:"transcript"`
	Loading      bool             `json:"loading"`
	ErrorKind    ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Snapshot     *WeatherSnapshot `json:"snapshot,omitempty"`
	FetchSeq     uint64           `json:"fetch_seq"`
	ChatSending  bool             `json:"chat_sending"`
	ChatStarted  time.Time        `json:"chat_started"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (s *SessionState) clone() *SessionState {
	c := *s
	c.Transcript = append([]ChatTurn(nil), s.Transcript...)
	return &c
}

// SessionStore persists session state. Load returns (nil, nil) for an unknown id.
type SessionStore interface {
	Load(ctx context.Context, id string) (*SessionState, error)
	Save(ctx context.Context, state *SessionState) error
}

// MemorySessionStore keeps sessions in process memory
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*SessionState)}
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return state.clone(), nil
}

func (m *MemorySessionStore) Save(_ context.Context, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.ID] = state.clone()
	return nil
}

// Prune drops sessions last saved before cutoff and reports how many were removed
func (m *MemorySessionStore) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, state := range m.sessions {
		if state.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// sessionPruner is implemented by stores that do not expire sessions on their own
type sessionPruner interface {
	Prune(cutoff time.Time) int
}

// A chat marked Sending for longer than this is treated as Idle again
const chatStaleAfter = 2 * chatTimeout

type sessionLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

// SessionManager serialises read-modify-write cycles per session id.
// Different sessions proceed in parallel.
type SessionManager struct {
	store       SessionStore
	defaultUnit weather.Unit
	metrics     *metrics.Metrics
	logger      *zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewSessionManager(store SessionStore, defaultUnit weather.Unit, metricsCollector *metrics.Metrics, logger *zerolog.Logger) *SessionManager {
	if !defaultUnit.Valid() {
		defaultUnit = weather.Celsius
	}
	return &SessionManager{
		store:       store,
		defaultUnit: defaultUnit,
		metrics:     metricsCollector,
		logger:      logger,
		locks:       make(map[string]*sessionLock),
	}
}

// acquire locks the session and returns its release func. The reference count
// keeps cleanup from dropping a lock somebody holds or waits on.
func (m *SessionManager) acquire(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
		m.metrics.SetGauge(metrics.ActiveSessions, float64(len(m.locks)))
	}
	l.refs++
	l.lastUsed = time.Now()
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		m.mu.Unlock()
	}
}

// StartCleanup forgets sessions idle for longer than idle, checking every interval, until ctx is done
func (m *SessionManager) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.cleanup(now.Add(-idle))
			}
		}
	}()
}

func (m *SessionManager) cleanup(cutoff time.Time) {
	m.mu.Lock()
	for id, l := range m.locks {
		if l.refs == 0 && l.lastUsed.Before(cutoff) {
			delete(m.locks, id)
		}
	}
	tracked := len(m.locks)
	m.mu.Unlock()

	m.metrics.SetGauge(metrics.ActiveSessions, float64(tracked))

	if p, ok := m.store.(sessionPruner); ok {
		if removed := p.Prune(cutoff); removed > 0 {
			m.logger.Debug().Int("sessions", removed).Msg("Pruned idle sessions")
		}
	}
}

func (m *SessionManager) newState(id string) *SessionState {
	return &SessionState{ID: id, Unit: m.defaultUnit, Transcript: []ChatTurn{}}
}

func (m *SessionManager) load(ctx context.Context, id string) (*SessionState, error) {
	state, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if state == nil {
		state = m.newState(id)
	}
	return state, nil
}

// update runs fn on the current state under the session lock and saves the result.
// If fn fails nothing is saved.
func (m *SessionManager) update(ctx context.Context, id string, fn func(*SessionState) error) (*SessionState, error) {
	defer m.acquire(id)()

	state, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	state.UpdatedAt = time.Now()
	if err := m.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return state.clone(), nil
}

// Get returns a copy of the session, or a fresh default one if it does not exist yet
func (m *SessionManager) Get(ctx context.Context, id string) (*SessionState, error) {
	defer m.acquire(id)()

	state, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.clone(), nil
}

// BeginFetch marks the session loading and returns the sequence number of the new fetch
func (m *SessionManager) BeginFetch(ctx context.Context, id string) (uint64, error) {
	var seq uint64
	_, err := m.update(ctx, id, func(s *SessionState) error {
		s.FetchSeq++
		seq = s.FetchSeq
		s.Loading = true
		return nil
	})
	return seq, err
}

// CompleteFetch installs snap, or records fetchErr and clears the snapshot.
// Results of a fetch that is no longer the latest are dropped with ErrSupersededFetch.
func (m *SessionManager) CompleteFetch(ctx context.Context, id string, seq uint64, snap *WeatherSnapshot, fetchErr error) (*SessionState, error) {
	return m.update(ctx, id, func(s *SessionState) error {
		if seq != s.FetchSeq {
			m.logger.Debug().
				Str("session_id", id).
				Uint64("seq", seq).
				Uint64("latest", s.FetchSeq).
				Msg("Discarding stale fetch result")
			return ErrSupersededFetch
		}

		s.Loading = false
		if fetchErr != nil {
			s.Snapshot = nil
			s.ErrorKind = ErrorKindOf(fetchErr)
			s.ErrorMessage = fetchErr.Error()
			return nil
		}

		s.Snapshot = snap
		s.ErrorKind = KindNone
		s.ErrorMessage = ""
		return nil
	})
}

func (m *SessionManager) SetUnit(ctx context.Context, id string, unit weather.Unit) (*SessionState, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("invalid unit %q", unit)
	}
	return m.update(ctx, id, func(s *SessionState) error {
		s.Unit = unit
		return nil
	})
}

// ToggleUnit flips the display unit. The snapshot is untouched.
func (m *SessionManager) ToggleUnit(ctx context.Context, id string) (*SessionState, error) {
	return m.update(ctx, id, func(s *SessionState) error {
		s.Unit = s.Unit.Toggle()
		return nil
	})
}

// BeginChat moves the chat from Idle to Sending and records the question.
// It fails with ErrChatBusy, leaving the transcript as is, while a request is in flight.
// A Sending mark older than chatStaleAfter never completed and no longer blocks.
func (m *SessionManager) BeginChat(ctx context.Context, id, question string) (*SessionState, error) {
	return m.update(ctx, id, func(s *SessionState) error {
		now := time.Now()
		if s.ChatSending {
			if now.Sub(s.ChatStarted) < chatStaleAfter {
				return ErrChatBusy
			}
			m.logger.Warn().
				Str("session_id", id).
				Time("started", s.ChatStarted).
				Msg("Releasing abandoned chat request")
		}
		s.ChatSending = true
		s.ChatStarted = now
		s.Transcript = append(s.Transcript, ChatTurn{Role: RoleUser, Text: question})
		return nil
	})
}

// CompleteChat appends the assistant turn and returns the chat to Idle
func (m *SessionManager) CompleteChat(ctx context.Context, id string, turn ChatTurn) (*SessionState, error) {
	return m.update(ctx, id, func(s *SessionState) error {
		s.ChatSending = false
		s.ChatStarted = time.Time{}
		s.Transcript = append(s.Transcript, turn)
		return nil
	})
}
