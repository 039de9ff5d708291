package conncache

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"windowsauth/internal/types"
)

type connKey struct{}

// Cache keeps identities for client connections that completed the NTLM
// handshake. Connections are told apart by an id assigned in ConnContext, and
// their entry is dropped once ConnState reports them closed or hijacked.
// Requests that did not arrive through a tagged connection are never cached.
type Cache struct {
	ttl    time.Duration
	items  *gocache.Cache
	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[net.Conn]string
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		items: gocache.New(ttl, 2*ttl),
		conns: make(map[net.Conn]string),
	}
}

// ConnContext is installed as http.Server.ConnContext.
func (c *Cache) ConnContext(ctx context.Context, conn net.Conn) context.Context {
	key := "conn:" + strconv.FormatUint(c.nextID.Add(1), 10)
	c.mu.Lock()
	c.conns[conn] = key
	c.mu.Unlock()
	return WithKey(ctx, key)
}

// ConnState is installed as http.Server.ConnState.
func (c *Cache) ConnState(conn net.Conn, state http.ConnState) {
	if state != http.StateClosed && state != http.StateHijacked {
		return
	}
	c.mu.Lock()
	key, ok := c.conns[conn]
	delete(c.conns, conn)
	c.mu.Unlock()
	if ok {
		c.items.Delete(key)
	}
}

func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, connKey{}, key)
}

// Key returns the connection id of a request. Request headers and the
// remote address are client controlled and never used.
func Key(r *http.Request) (string, bool) {
	key, ok := r.Context().Value(connKey{}).(string)
	return key, ok && key != ""
}

func (c *Cache) Lookup(r *http.Request) (types.Identity, bool) {
	key, ok := Key(r)
	if !ok {
		return types.Identity{}, false
	}
	v, ok := c.items.Get(key)
	if !ok {
		return types.Identity{}, false
	}
	id, ok := v.(types.Identity)
	if !ok || id.IsZero() {
		return types.Identity{}, false
	}
	c.items.Set(key, id, c.ttl)
	return id, true
}

func (c *Cache) Remember(r *http.Request, id types.Identity) {
	key, ok := Key(r)
	if !ok || id.IsZero() {
		return
	}
	c.items.Set(key, id, c.ttl)
}

func (c *Cache) Forget(r *http.Request) {
	if key, ok := Key(r); ok {
		c.items.Delete(key)
	}
}

func (c *Cache) Len() int {
	return c.items.ItemCount()
}
