// Package workspace creates and tears down the per-request session directories.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/observability"
)

const defaultCreateRetries = 5

// Config holds workspace manager settings.
type Config struct {
	Root          string
	CreateRetries int
}

// Manager owns the storage root. Session directories are its direct children,
// named by a random UUID.
type Manager struct {
	root    string
	retries int
	newID   func() string
	now     func() time.Time
	logger  *observability.Logger
}

// NewManager creates the storage root if needed and returns a manager for it.
func NewManager(cfg Config, logger *observability.Logger) (*Manager, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, domain.StorageError(domain.ReasonWorkspaceCreate, "resolve storage root", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.StorageError(domain.ReasonWorkspaceCreate, "create storage root", err)
	}

	retries := cfg.CreateRetries
	if retries < 1 {
		retries = defaultCreateRetries
	}

	return &Manager{
		root:    root,
		retries: retries,
		newID:   uuid.NewString,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Root returns the absolute storage root.
func (m *Manager) Root() string {
	return m.root
}

// Open creates a fresh, empty session workspace. os.Mkdir fails atomically
// when the directory already exists, which is how an identifier collision is
// detected; a new identifier is drawn up to the configured number of times.
func (m *Manager) Open(ctx context.Context) (*domain.Session, error) {
	var lastErr error

	for attempt := 0; attempt < m.retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		id := m.newID()
		dir := filepath.Join(m.root, id)

		err := os.Mkdir(dir, 0o700)
		if errors.Is(err, fs.ErrExist) {
			lastErr = err
			m.logger.Warn().
				Str("session_id", id).
				Int("attempt", attempt+1).
				Msg("Session identifier collision, retrying")
			continue
		}
		if err != nil {
			return nil, domain.StorageError(domain.ReasonWorkspaceCreate, "create session directory", err)
		}

		session := &domain.Session{ID: id, Root: dir, CreatedAt: m.now()}
		for _, sub := range []string{session.InputDir(), session.OutputDir(), session.ScratchDir()} {
			if err := os.Mkdir(sub, 0o700); err != nil {
				_ = os.RemoveAll(dir)
				return nil, domain.StorageError(domain.ReasonWorkspaceCreate, "create session subdirectory", err)
			}
		}

		m.logger.Debug().Str("session_id", id).Str("path", dir).Msg("Session opened")
		return session, nil
	}

	return nil, domain.StorageError(domain.ReasonWorkspaceCreate,
		fmt.Sprintf("no unique session identifier after %d attempts", m.retries), lastErr)
}

// Close removes the session directory and everything in it. Only the first
// call for a session does any work. A removal failure is logged and returned
// for bookkeeping; callers must not surface it to the client.
func (m *Manager) Close(s *domain.Session) error {
	if s == nil {
		return nil
	}

	_, err := s.CloseOnce(func() error {
		if filepath.Dir(s.Root) != m.root {
			return domain.StorageError(domain.ReasonWorkspaceRemove,
				fmt.Sprintf("refusing to remove %s outside storage root", s.Root), nil)
		}
		if err := os.RemoveAll(s.Root); err != nil {
			return domain.StorageError(domain.ReasonWorkspaceRemove, "remove session directory", err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", s.ID).Msg("Session cleanup failed")
		return err
	}

	m.logger.Debug().Str("session_id", s.ID).Msg("Session closed")
	return nil
}

// Sweep removes session directories last modified before now-olderThan.
// Entries that are not session directories are left alone. It is meant for
// startup, to clear workspaces orphaned by a crash.
func (m *Manager) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, domain.StorageError(domain.ReasonWorkspaceRemove, "read storage root", err)
	}

	cutoff := m.now().Add(-olderThan)
	removed := 0
	var errs []error

	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Swept orphaned session workspaces")
	}
	if len(errs) > 0 {
		return removed, domain.StorageError(domain.ReasonWorkspaceRemove, "sweep storage root", errors.Join(errs...))
	}
	return removed, nil
}

// Ready reports whether the storage root currently accepts writes.
func (m *Manager) Ready() error {
	f, err := os.CreateTemp(m.root, ".ready-*")
	if err != nil {
		return domain.StorageError(domain.ReasonWorkspaceCreate, "storage root not writable", err)
	}
	name := f.Name()
	closeErr := f.Close()
	if err := os.Remove(name); err != nil {
		return domain.StorageError(domain.ReasonWorkspaceRemove, "storage root probe not removable", err)
	}
	if closeErr != nil {
		return domain.StorageError(domain.ReasonWorkspaceCreate, "storage root not writable", closeErr)
	}
	return nil
}
