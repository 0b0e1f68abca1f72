package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"
)

// ErrSessionNotFound reports a session ID with no saved snapshot.
var ErrSessionNotFound = errors.New("storage: session not found")

// validSessionID keeps session files flat: IDs are UUID-shaped or at least
// filename-safe.
var validSessionID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Snapshot is one persisted session: bookkeeping wrapped around the caller's
// opaque conversation state. The store never looks inside State, so the
// session layer stays decoupled from the conversation types.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	SavedAt   time.Time       `json:"saved_at"`
	State     json.RawMessage `json:"state"`
}

// SessionInfo summarizes a stored session for listings.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
}

// SessionStore persists one snapshot per session on top of a Storage
// backend. Saving overwrites the previous snapshot; there is no history.
type SessionStore struct {
	backend Storage
	logger  *slog.Logger
}

func NewSessionStore(backend Storage, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		backend: backend,
		logger:  logger.With("component", "session_store"),
	}
}

func sessionPath(sessionID string) string {
	return sessionID + ".json"
}

// Save marshals state and writes it as the session's current snapshot.
func (s *SessionStore) Save(ctx context.Context, sessionID string, state any) error {
	if !validSessionID.MatchString(sessionID) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	snapshot := Snapshot{
		SessionID: sessionID,
		SavedAt:   time.Now().UTC(),
		State:     raw,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := s.backend.Save(ctx, sessionPath(sessionID), data); err != nil {
		return fmt.Errorf("saving session %s: %w", sessionID, err)
	}

	s.logger.Debug("session saved", "session_id", sessionID, "bytes", len(data))
	return nil
}

// Load unmarshals the session's snapshot into state and reports when it was
// saved.
func (s *SessionStore) Load(ctx context.Context, sessionID string, state any) (time.Time, error) {
	if !validSessionID.MatchString(sessionID) {
		return time.Time{}, fmt.Errorf("invalid session id %q", sessionID)
	}

	data, err := s.backend.Load(ctx, sessionPath(sessionID))
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return time.Time{}, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(snapshot.State, state); err != nil {
		return time.Time{}, fmt.Errorf("decoding session %s state: %w", sessionID, err)
	}

	return snapshot.SavedAt, nil
}

// List returns summaries of all stored sessions, most recent first.
func (s *SessionStore) List(ctx context.Context) ([]SessionInfo, error) {
	paths, err := s.backend.List(ctx, "*.json")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var infos []SessionInfo
	for _, p := range paths {
		data, err := s.backend.Load(ctx, p)
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "path", p, "error", err)
			continue
		}
		var snapshot Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			s.logger.Warn("skipping corrupt session file", "path", p, "error", err)
			continue
		}
		infos = append(infos, SessionInfo{SessionID: snapshot.SessionID, SavedAt: snapshot.SavedAt})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].SavedAt.After(infos[j].SavedAt)
	})
	return infos, nil
}

// Exists reports whether the session has a saved snapshot.
func (s *SessionStore) Exists(ctx context.Context, sessionID string) bool {
	if !validSessionID.MatchString(sessionID) {
		return false
	}
	return s.backend.Exists(ctx, sessionPath(sessionID))
}

// Delete removes the session's snapshot.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if !validSessionID.MatchString(sessionID) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}
	if err := s.backend.Delete(ctx, sessionPath(sessionID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}
