package store

import (
	"context"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
)

// Bootstrap re-fetches the whole session and replaces every collection.
// A logged-out answer clears them. On failure local state is left as it was.
// When bootstraps overlap, only the newest request is applied.
func (s *Store) Bootstrap(ctx context.Context) error {
	ctx = withRequestID(ctx)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	snap, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Bootstrap failed, keeping local state")
		return err
	}

	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale bootstrap response")
		return nil
	}
	s.applied = seq
	var (
		persisted *models.Snapshot
		previous  *models.User
	)
	if snap.SignedIn() {
		s.replaceLocked(snap)
		persisted = s.snapshotLocked()
	} else {
		if s.currentUser != nil {
			u := *s.currentUser
			previous = &u
		}
		s.resetLocked()
	}
	s.mu.Unlock()

	if persisted != nil {
		s.logger.WithFields(map[string]interface{}{
			"userId":       persisted.CurrentUser.ID,
			"marketplaces": len(persisted.Marketplaces),
			"jobs":         len(persisted.Jobs),
		}).Debug("Bootstrap applied")
		s.persist(ctx, persisted)
	} else {
		s.logger.Info("Backend reports no session, local state cleared")
		s.forget(ctx, previous)
	}
	return nil
}

// Restore loads the last persisted snapshot before the first bootstrap.
// It reports whether anything was restored.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, nil
	}
	snap, found, err := s.snapshots.LoadLast(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load persisted snapshot")
		return false, err
	}
	if !found || !snap.SignedIn() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a bootstrap already ran, its answer is newer
	if s.applied > 0 || s.currentUser != nil {
		return false, nil
	}
	s.replaceLocked(snap)
	s.logger.WithField("userId", snap.CurrentUser.ID).Info("Restored persisted snapshot")
	return true, nil
}

// Login opens a session and bootstraps on success
func (s *Store) Login(ctx context.Context, email, password string) error {
	if email == "" {
		return errors.NewInvalidParameterError("email", "must not be empty")
	}
	ctx = withRequestID(ctx)
	if err := s.backend.Login(ctx, email, password); err != nil {
		s.logger.WithError(err).WithField("email", email).Warn("Login failed")
		return err
	}
	return s.Bootstrap(ctx)
}

// Register creates an account, which also signs in, and bootstraps on success
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	if name == "" {
		return errors.NewInvalidParameterError("name", "must not be empty")
	}
	if email == "" {
		return errors.NewInvalidParameterError("email", "must not be empty")
	}
	ctx = withRequestID(ctx)
	if err := s.backend.Register(ctx, name, email, password); err != nil {
		s.logger.WithError(err).WithField("email", email).Warn("Registration failed")
		return err
	}
	return s.Bootstrap(ctx)
}

// Logout closes the backend session and clears local state whatever the
// backend answers. The returned error is informational only.
func (s *Store) Logout(ctx context.Context) error {
	ctx = withRequestID(ctx)
	err := s.backend.Logout(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Logout request failed, clearing local state anyway")
	}

	s.mu.Lock()
	var previous *models.User
	if s.currentUser != nil {
		u := *s.currentUser
		previous = &u
	}
	// invalidates bootstraps still in flight
	s.seq++
	s.applied = s.seq
	s.resetLocked()
	s.mu.Unlock()

	s.forget(ctx, previous)
	return err
}

func (s *Store) persist(ctx context.Context, snap *models.Snapshot) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.WithError(err).Warn("Failed to persist snapshot")
	}
}

func (s *Store) forget(ctx context.Context, user *models.User) {
	if s.snapshots == nil || user == nil {
		return
	}
	if err := s.snapshots.Drop(ctx, user); err != nil {
		s.logger.WithError(err).Warn("Failed to drop persisted snapshot")
	}
}
