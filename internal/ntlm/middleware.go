package ntlm

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"windowsauth/internal/contextKey"
	"windowsauth/internal/types"
)

// IdentityStore remembers identities that already completed the handshake so
// later requests can skip it.
type IdentityStore interface {
	Lookup(r *http.Request) (types.Identity, bool)
	Remember(r *http.Request, id types.Identity)
}

type Observer interface {
	ObserveHandshake(outcome Outcome, errs []AuthError)
}

type Authenticator struct {
	Options   Options
	Stores    []IdentityStore
	Observer  Observer
	OnFailure http.HandlerFunc
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, store := range a.Stores {
			if id, ok := store.Lookup(r); ok {
				next.ServeHTTP(w, r.WithContext(contextKey.WithIdentity(r.Context(), id)))
				return
			}
		}

		sess := NewSession(r.Header, NewHTTPSignaler(w), a.Options)
		id, err := sess.Resolve()
		if a.Observer != nil {
			a.Observer.ObserveHandshake(sess.Outcome(), sess.Ledger().Entries())
		}

		if errors.Is(err, ErrSuspended) {
			log.Printf(
				"NTLM handshake challenge: method=%s remote=%s path=%s www_authenticate=%q codes=%s",
				sess.Method(),
				r.RemoteAddr,
				r.URL.Path,
				strings.Join(w.Header().Values("WWW-Authenticate"), " | "),
				joinCodes(sess.Ledger().Codes()),
			)
			return
		}
		if err != nil {
			log.Printf(
				"NTLM handshake failed: method=%s remote=%s path=%s ua=%q err=%v codes=%s",
				sess.Method(),
				r.RemoteAddr,
				r.URL.Path,
				r.UserAgent(),
				err,
				joinCodes(sess.Ledger().Codes()),
			)
			a.fail(w, r)
			return
		}

		for _, store := range a.Stores {
			store.Remember(r, id)
		}
		log.Printf(
			"NTLM handshake resolved: user=%s remote=%s path=%s codes=%s",
			id,
			r.RemoteAddr,
			r.URL.Path,
			joinCodes(sess.Ledger().Codes()),
		)
		next.ServeHTTP(w, r.WithContext(contextKey.WithIdentity(r.Context(), id)))
	})
}

func (a *Authenticator) fail(w http.ResponseWriter, r *http.Request) {
	if a.OnFailure != nil {
		a.OnFailure(w, r)
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

func joinCodes(codes []ErrorCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
