package ntlm

import (
	"errors"
	"net/http"

	"windowsauth/internal/types"
)

// ErrSuspended is returned when the handshake answered the request with a 401
// and is waiting for the browser to retry.
var ErrSuspended = errors.New("NTLM handshake suspended")

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeResolved
	OutcomeSuspended
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

type Options struct {
	// DecodeUnicode decodes names as UTF-16LE when the client negotiated
	// Unicode instead of stripping NUL bytes.
	DecodeUnicode bool
	Layout        ChallengeLayout
}

// Session is the state of one resolution attempt for one request. The two
// legs of the handshake arrive as separate requests and get separate
// sessions.
type Session struct {
	header   http.Header
	signaler Signaler
	opts     Options

	method      Method
	tokenOffset int
	rawToken    Token
	domain      string
	user        string
	initialized bool
	outcome     Outcome
	err         error
	ledger      Ledger
}

func NewSession(header http.Header, signaler Signaler, opts Options) *Session {
	if header == nil {
		header = http.Header{}
	}
	return &Session{header: header, signaler: signaler, opts: opts}
}

// Resolve runs the handshake for the request headers once. Later calls return
// the first result.
func (s *Session) Resolve() (types.Identity, error) {
	if !s.initialized {
		s.err = s.resolve()
	}
	if s.err != nil {
		return types.Identity{}, s.err
	}
	return types.Identity{Domain: s.domain, User: s.user}, nil
}

func (s *Session) resolve() error {
	s.initialized = true

	if !IsCompatibleEnvironment(s.header.Get("User-Agent")) {
		s.ledger.record(CodeIncompatibleEnv)
	}

	var authorization string
	if len(s.header.Values("Via")) > 0 {
		s.ledger.record(CodeProxyDetected)
	} else {
		values := s.header.Values("Authorization")
		if len(values) == 0 {
			s.ledger.record(CodeMissingAuthorization)
			s.signal(func(sig Signaler) { sig.Unauthorized() })
			return s.suspend()
		}
		authorization = values[0]
		s.method, s.tokenOffset = DecodeHeader(authorization)
	}

	if s.method == MethodUnset {
		return s.fail(CodeUnknownMethod)
	}

	token, err := DecodeToken(authorization[s.tokenOffset:])
	if err != nil {
		return s.fail(CodeMalformedToken)
	}
	s.rawToken = token

	if token.IsNegotiate() {
		s.ledger.record(CodeNeedsChallenge)
		challenge := ChallengeToken(s.opts.Layout)
		s.signal(func(sig Signaler) { sig.Challenge(challenge) })
		return s.suspend()
	}

	domain, user, err := extractIdentity(token, s.opts.DecodeUnicode)
	if err != nil {
		return s.fail(CodeMalformedToken)
	}
	s.domain, s.user = domain, user
	if domain == "" {
		s.ledger.record(CodeDomainUnresolved)
	}
	if user == "" {
		return s.fail(CodeMalformedToken)
	}
	s.outcome = OutcomeResolved
	return nil
}

func (s *Session) signal(fn func(Signaler)) {
	if s.signaler != nil {
		fn(s.signaler)
	}
}

func (s *Session) suspend() error {
	s.outcome = OutcomeSuspended
	return ErrSuspended
}

func (s *Session) fail(code ErrorCode) error {
	s.outcome = OutcomeFailed
	return s.ledger.record(code)
}

func (s *Session) User() string {
	if !s.initialized {
		_, _ = s.Resolve()
	}
	return s.user
}

func (s *Session) Domain() string {
	if !s.initialized {
		_, _ = s.Resolve()
	}
	return s.domain
}

func (s *Session) Method() Method {
	return s.method
}

func (s *Session) TokenOffset() int {
	return s.tokenOffset
}

func (s *Session) RawToken() Token {
	return s.rawToken
}

func (s *Session) Outcome() Outcome {
	return s.outcome
}

func (s *Session) Initialized() bool {
	return s.initialized
}

// Errors returns the recorded anomalies in order, or nil when there are none.
// Reading errors before Resolve records CodeQueriedBeforeResolve.
func (s *Session) Errors() []AuthError {
	s.guardQuery()
	return s.ledger.Entries()
}

// ErrorText is Errors rendered one per line.
func (s *Session) ErrorText() string {
	s.guardQuery()
	return s.ledger.String()
}

func (s *Session) Ledger() *Ledger {
	return &s.ledger
}

func (s *Session) guardQuery() {
	if !s.initialized {
		s.ledger.record(CodeQueriedBeforeResolve)
	}
}
