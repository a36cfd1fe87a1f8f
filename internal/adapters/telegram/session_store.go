package telegram

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/conversation"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// SessionStore keeps one conversation session per chat. Idle sessions expire
// after ttl; every access refreshes the expiry.
type SessionStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewSessionStore creates per-chat session store
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	c := gocache.New(ttl, ttl/4)
	c.OnEvicted(func(key string, v interface{}) {
		if s, ok := v.(*conversation.Session); ok {
			s.Reset()
			logger.Debug("session expired",
				zap.String("chat", key),
				zap.String("session_id", s.ID),
				zap.String("company", s.Company),
			)
		}
	})
	return &SessionStore{cache: c, ttl: ttl}
}

// Get returns the chat's session and refreshes its expiry
func (s *SessionStore) Get(chatID int64) (*conversation.Session, bool) {
	v, ok := s.cache.Get(key(chatID))
	if !ok {
		return nil, false
	}
	session := v.(*conversation.Session)
	s.cache.Set(key(chatID), session, s.ttl)
	return session, true
}

// Put replaces the chat's session; the previous one is reset
func (s *SessionStore) Put(chatID int64, session *conversation.Session) {
	if prev, ok := s.cache.Get(key(chatID)); ok {
		if p := prev.(*conversation.Session); p != session {
			p.Reset()
		}
	}
	s.cache.Set(key(chatID), session, s.ttl)
}

// Delete drops the chat's session
func (s *SessionStore) Delete(chatID int64) {
	s.cache.Delete(key(chatID))
}

// Len returns number of live sessions
func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
