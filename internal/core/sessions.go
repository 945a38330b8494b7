package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/erp-dms/dms-assistant/internal/state"
)

// Session is one user's run through the analysis workflow.
type Session struct {
	ID        string       `json:"id"`
	UserName  string       `json:"user_name"`
	CreatedAt time.Time    `json:"created_at"`
	Store     *state.Store `json:"-"`

	unsubscribe func()
}

type sessionRepository struct {
	cache *cache.Cache
}

// Sessions expire after ttl without access; expired entries are purged every
// ttl/2.
func newSessionRepository(ttl time.Duration) *sessionRepository {
	return &sessionRepository{cache: cache.New(ttl, ttl/2)}
}

func (r *sessionRepository) create(userName string, now time.Time) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		UserName:  userName,
		CreatedAt: now,
		Store:     state.NewStore(),
	}
	r.cache.Set(sess.ID, sess, cache.DefaultExpiration)
	return sess
}

// get refreshes the entry's expiry on every hit.
func (r *sessionRepository) get(id string) (*Session, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	r.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

func (r *sessionRepository) delete(id string) {
	if x, found := r.cache.Get(id); found {
		if sess := x.(*Session); sess.unsubscribe != nil {
			sess.unsubscribe()
		}
	}
	r.cache.Delete(id)
}
