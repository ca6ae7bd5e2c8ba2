package http

import (
	"context"
	"log/slog"
	"time"

	"dompet/internal/cache"
	"dompet/internal/editor"
	"dompet/internal/syncstatus"
	"dompet/internal/targets"
)

// session is the server-side state of one signed-in user: the target cache,
// the unsaved edits layered on it, and the sync badge.
type session struct {
	store   *targets.Store
	editor  *editor.Editor
	tracker *syncstatus.Tracker
}

// sessions keeps one session per user, bounded in size and idle time.
type sessions struct {
	backend targets.Backend
	events  syncstatus.Observer
	logger  *slog.Logger
	lru     *cache.LRUCache[*session]
}

func newSessions(backend targets.Backend, events syncstatus.Observer, logger *slog.Logger, maxUsers int, idle time.Duration) *sessions {
	s := &sessions{
		backend: backend,
		events:  events,
		logger:  logger,
		lru:     cache.NewLRUCache[*session](maxUsers, idle),
	}
	s.lru.OnEvict(func(userID string, _ *session) {
		logger.Debug("Session evicted", "component", "cache", "user_id", userID)
	})
	return s
}

// get returns the session of userID, loading its targets on first use and
// after a failed load.
func (s *sessions) get(ctx context.Context, userID string) (*session, error) {
	sess, err := s.lru.GetOrCreate(userID, func() (*session, error) {
		tracker := syncstatus.NewTracker()
		observers := syncstatus.Multi{tracker, syncstatus.LogObserver{Logger: s.logger}}
		if s.events != nil {
			observers = append(observers, s.events)
		}
		store := targets.New(s.backend, observers, s.logger)
		return &session{
			store:   store,
			editor:  editor.New(store, s.backend, s.logger),
			tracker: tracker,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if !sess.store.Loaded() {
		sess.store.FetchAll(ctx)
	}
	return sess, nil
}
