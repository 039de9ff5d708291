package session

import (
	"encoding/gob"
	"log"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"windowsauth/internal/types"
)

type sessionData struct {
	Identity  types.Identity
	CreatedAt time.Time
}

const sessionKey = "identity"

func init() {
	gob.Register(sessionData{})
}

const DefaultTTL = 30 * time.Minute

// Manager stores resolved identities in a cookie-backed session. Requests
// must pass through LoadAndSave before Lookup or Remember are used.
type Manager struct {
	*scs.SessionManager
}

func NewManager(ttl time.Duration, secure bool) *Manager {
	return &Manager{SessionManager: newSessionManager(ttl, secure)}
}

func newSessionManager(ttl time.Duration, secure bool) *scs.SessionManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	manager := scs.New()
	manager.Store = memstore.New()
	manager.Lifetime = ttl
	manager.Cookie.Name = "winauth_session"
	manager.Cookie.Path = "/"
	manager.Cookie.HttpOnly = true
	manager.Cookie.SameSite = http.SameSiteLaxMode
	manager.Cookie.Secure = secure
	return manager
}

func (m *Manager) Lookup(r *http.Request) (types.Identity, bool) {
	sess, ok := m.Get(r.Context(), sessionKey).(sessionData)
	if !ok || sess.Identity.IsZero() {
		return types.Identity{}, false
	}
	return sess.Identity, true
}

func (m *Manager) Remember(r *http.Request, id types.Identity) {
	if id.IsZero() {
		return
	}
	ctx := r.Context()
	if err := m.RenewToken(ctx); err != nil {
		log.Printf("session renew failed for user=%s: %v", id, err)
		return
	}
	m.Put(ctx, sessionKey, sessionData{
		Identity:  id,
		CreatedAt: time.Now(),
	})
}

func (m *Manager) Forget(r *http.Request) error {
	return m.Destroy(r.Context())
}
