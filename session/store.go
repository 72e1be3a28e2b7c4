package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raushankrgupta/fitchy/models"
)

// DefaultMaxAge is how long a detect session stays searchable.
const DefaultMaxAge = 10 * time.Minute

var ErrNotFound = errors.New("session not found")

// Store keeps detect sessions between /detect and /search-piece.
type Store interface {
	Save(ctx context.Context, s *models.DetectSession) error
	Get(ctx context.Context, id string) (*models.DetectSession, error)
	SetFullExact(ctx context.Context, id string, cands []models.Candidate) error
	SetCropURL(ctx context.Context, id string, index int, url string) error
}

// Memory is the process-local store. Expired sessions are purged on every Save.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*models.DetectSession
	maxAge   time.Duration
	now      func() time.Time
}

func NewMemory(maxAge time.Duration) *Memory {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Memory{sessions: make(map[string]*models.DetectSession), maxAge: maxAge, now: time.Now}
}

func (m *Memory) Save(_ context.Context, s *models.DetectSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	m.sessions[s.DetectID] = copySession(s)
	return nil
}

// Get returns a copy of the session; callers may modify it freely.
func (m *Memory) Get(_ context.Context, id string) (*models.DetectSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || m.expired(s) {
		return nil, ErrNotFound
	}
	return copySession(s), nil
}

func (m *Memory) SetFullExact(_ context.Context, id string, cands []models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.FullExact = models.CloneCandidates(cands)
	s.FullExactRun = true
	return nil
}

func (m *Memory) SetCropURL(_ context.Context, id string, index int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.CropURLs == nil {
		s.CropURLs = make(map[int]string)
	}
	s.CropURLs[index] = url
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Memory) expired(s *models.DetectSession) bool {
	return m.now().Sub(s.CreatedAt) > m.maxAge
}

// cleanup drops expired sessions. Caller holds mu.
func (m *Memory) cleanup() {
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
		}
	}
}

func copySession(s *models.DetectSession) *models.DetectSession {
	c := *s
	c.Pieces = append([]models.Piece(nil), s.Pieces...)
	c.FullExact = models.CloneCandidates(s.FullExact)
	c.CropData = make(map[int][]byte, len(s.CropData))
	for k, v := range s.CropData {
		c.CropData[k] = v
	}
	c.CropURLs = make(map[int]string, len(s.CropURLs))
	for k, v := range s.CropURLs {
		c.CropURLs[k] = v
	}
	return &c
}
