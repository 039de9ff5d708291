package ntlm

import "net/http"

// Signaler emits the 401 responses that drive the browser through the
// handshake. After either call the current request must not be processed
// further.
type Signaler interface {
	// Challenge always advertises the NTLM scheme, also when the client
	// opened with Negotiate; browsers accept the NTLM challenge on either leg.
	Challenge(token string)
	Unauthorized()
}

type HTTPSignaler struct {
	w    http.ResponseWriter
	sent bool
}

func NewHTTPSignaler(w http.ResponseWriter) *HTTPSignaler {
	return &HTTPSignaler{w: w}
}

func (s *HTTPSignaler) Challenge(token string) {
	if s.sent {
		return
	}
	header := "NTLM"
	if token != "" {
		header += " " + token
	}
	s.w.Header().Set("Connection", "Keep-Alive")
	s.w.Header().Add("WWW-Authenticate", header)
	s.send()
}

func (s *HTTPSignaler) Unauthorized() {
	if s.sent {
		return
	}
	s.w.Header().Set("Connection", "Keep-Alive")
	s.w.Header().Add("WWW-Authenticate", "Negotiate")
	s.w.Header().Add("WWW-Authenticate", "NTLM")
	s.send()
}

func (s *HTTPSignaler) Sent() bool {
	return s.sent
}

func (s *HTTPSignaler) send() {
	s.sent = true
	http.Error(s.w, "unauthorized", http.StatusUnauthorized)
}
