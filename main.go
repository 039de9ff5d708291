package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"windowsauth/internal/config"
	"windowsauth/internal/conncache"
	"windowsauth/internal/contextKey"
	"windowsauth/internal/ldap"
	"windowsauth/internal/metrics"
	"windowsauth/internal/ntlm"
	"windowsauth/internal/session"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

/*
   ---------------------------
   Request logging
   ---------------------------
*/

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		log.Printf(
			"request: status=%d bytes=%d dur=%s method=%s path=%s remote=%s via=%q auth_scheme=%q ua=%q",
			rec.status,
			rec.bytes,
			time.Since(start).Truncate(time.Millisecond),
			r.Method,
			r.URL.Path,
			r.RemoteAddr,
			r.Header.Get("Via"),
			authScheme(r.Header.Get("Authorization")),
			r.UserAgent(),
		)
	})
}

// authScheme keeps the credential payload out of the access log.
func authScheme(header string) string {
	scheme, _, _ := strings.Cut(strings.TrimSpace(header), " ")
	return scheme
}

/*
   ---------------------------
   TLS
   ---------------------------
*/

func ensureTLSCert(certPath, keyPath string) error {
	certInfo, certErr := os.Stat(certPath)
	keyInfo, keyErr := os.Stat(keyPath)
	if certErr == nil && keyErr == nil && certInfo.Mode().IsRegular() && keyInfo.Mode().IsRegular() {
		return nil
	}

	if (certErr == nil) != (keyErr == nil) {
		log.Printf("TLS cert/key mismatch, regenerating: cert=%v key=%v", certErr, keyErr)
	}

	for _, p := range []string{certPath, keyPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: hostname,
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              uniqueHosts(hostname, "localhost"),
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	if err := writePEM(certPath, 0644, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return err
	}
	return writePEM(keyPath, 0600, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
}

func writePEM(path string, mode os.FileMode, block *pem.Block) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func uniqueHosts(hosts ...string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

/*
   ---------------------------
   Router
   ---------------------------
*/

type app struct {
	authenticator *ntlm.Authenticator
	sessions      *session.Manager
	connections   *conncache.Cache
	metrics       *metrics.Recorder
	directory     *ldap.Directory
}

func newApp(settings *config.SettingsType) (*app, error) {
	layout, err := ntlm.ParseChallengeLayout(settings.Get(config.NTLM_CHALLENGE_LAYOUT))
	if err != nil {
		return nil, err
	}
	connTTL, err := settings.Duration(config.CONN_CACHE_TTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.CONN_CACHE_TTL, err)
	}
	sessionTTL, err := settings.Duration(config.SESSION_TTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.SESSION_TTL, err)
	}

	a := &app{
		metrics:   metrics.NewRecorder(),
		directory: ldap.NewDirectory(settings),
	}
	a.authenticator = &ntlm.Authenticator{
		Options: ntlm.Options{
			DecodeUnicode: settings.IsTrue(config.NTLM_UNICODE_NAMES),
			Layout:        layout,
		},
		Observer: a.metrics,
	}
	if sessionTTL > 0 {
		a.sessions = session.NewManager(sessionTTL, settings.IsTrue(config.SESSION_SECURE_COOKIE))
		a.authenticator.Stores = append(a.authenticator.Stores, a.sessions)
	}
	if connTTL > 0 {
		a.connections = conncache.New(connTTL)
		a.authenticator.Stores = append(a.authenticator.Stores, a.connections)
	}
	return a, nil
}

func getWindowsAuthRouter(settings *config.SettingsType) (http.Handler, error) {
	a, err := newApp(settings)
	if err != nil {
		return nil, err
	}
	return a.routes(), nil
}

func (a *app) routes() http.Handler {
	router := chi.NewRouter()
	if a.sessions != nil {
		router.Use(a.sessions.LoadAndSave)
	}

	router.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			log.Printf("failed to write health response: %v", err)
		}
	})
	router.Handle("/metrics", a.metrics.Handler())
	router.Post("/api/logout", a.handleLogout)

	router.Group(func(r chi.Router) {
		r.Use(a.authenticator.Middleware)

		apiCfg := huma.DefaultConfig("WindowsAuth", "1.0.0")
		apiCfg.OpenAPIPath = ""
		apiCfg.DocsPath = ""
		apiCfg.SchemasPath = ""
		api := humachi.New(r, apiCfg)
		registerAPI(api, a.directory)
	})

	return logRequests(router)
}

func (a *app) server(addr string) *http.Server {
	srv := &http.Server{
		Addr:      addr,
		Handler:   a.routes(),
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},

		// NTLM authenticates the TCP connection; HTTP/2 multiplexing breaks it.
		TLSNextProto: make(map[string]func(*http.Server, *tls.Conn, http.Handler)),

		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	if a.connections != nil {
		srv.ConnContext = a.connections.ConnContext
		srv.ConnState = a.connections.ConnState
	}
	return srv
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	if a.sessions != nil {
		if err := a.sessions.Forget(r); err != nil {
			log.Printf("session destroy failed: %v", err)
		}
	}
	if a.connections != nil {
		a.connections.Forget(r)
	}
	w.WriteHeader(http.StatusNoContent)
}

type whoamiBody struct {
	Domain      string `json:"domain" doc:"Windows domain sent by the client, empty when unknown"`
	User        string `json:"user" doc:"Windows login name"`
	DisplayName string `json:"displayName,omitempty" doc:"Directory display name"`
	Mail        string `json:"mail,omitempty" doc:"Directory mail address"`
}

type whoamiOutput struct {
	Body whoamiBody
}

func registerAPI(api huma.API, directory *ldap.Directory) {
	huma.Get(api, "/api/whoami", func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
		id, ok := contextKey.IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("no resolved Windows identity")
		}
		if directory.Enabled() {
			enriched, err := directory.Lookup(ctx, id)
			if err != nil {
				log.Printf("directory lookup failed: user=%s err=%v", id, err)
			} else {
				id = enriched
			}
		}
		return &whoamiOutput{Body: whoamiBody{
			Domain:      id.Domain,
			User:        id.User,
			DisplayName: id.DisplayName,
			Mail:        id.Mail,
		}}, nil
	})
}

/*
   ---------------------------
   Main
   ---------------------------
*/

func main() {
	settings := config.NewSettingType(true)

	a, err := newApp(settings)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	srv := a.server(settings.Get(config.LISTEN_ADDR))

	if !settings.IsTrue(config.TLS_ENABLED) {
		log.Printf("Starting Windows authentication server on %s", srv.Addr)
		log.Fatal(srv.ListenAndServe())
	}

	certPath := settings.Get(config.TLS_CERT)
	keyPath := settings.Get(config.TLS_KEY)
	if err := ensureTLSCert(certPath, keyPath); err != nil {
		log.Fatalf("failed to ensure TLS certs: %v", err)
	}

	log.Printf("Starting Windows authentication server with TLS on %s", srv.Addr)
	log.Fatal(srv.ListenAndServeTLS(certPath, keyPath))
}
