package ntlm

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a handshake anomaly. The values are stable and shared
// with callers that log or display them.
type ErrorCode string

const (
	CodeQueriedBeforeResolve ErrorCode = "001"
	CodeIncompatibleEnv      ErrorCode = "100"
	CodeProxyDetected        ErrorCode = "101"
	CodeMissingAuthorization ErrorCode = "102"
	CodeUnknownMethod        ErrorCode = "103"
	CodeNeedsChallenge       ErrorCode = "104"
	CodeDomainUnresolved     ErrorCode = "105"
	CodeMalformedToken       ErrorCode = "106"
)

var errorDescriptions = map[ErrorCode]string{
	CodeQueriedBeforeResolve: "credentials must be resolved before errors are read",
	CodeIncompatibleEnv:      "complete authentication is only available to Chrome or Internet Explorer on Windows",
	CodeProxyDetected:        "Windows authentication cannot work through a proxy",
	CodeMissingAuthorization: "Authorization entry not found in client headers",
	CodeUnknownMethod:        "unknown authentication method, expected NTLM or Negotiate",
	CodeNeedsChallenge:       "authentication needs further information",
	CodeDomainUnresolved:     "cannot determine the Active Directory domain",
	CodeMalformedToken:       "cannot decode authorization token",
}

func (c ErrorCode) Description() string {
	return errorDescriptions[c]
}

type AuthError struct {
	Code        ErrorCode
	Description string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("Error #%s : %s", e.Code, e.Description)
}

// Ledger is an append-only, ordered list of handshake anomalies.
type Ledger struct {
	entries []AuthError
}

func (l *Ledger) Record(code ErrorCode, description string) {
	l.entries = append(l.entries, AuthError{Code: code, Description: description})
}

func (l *Ledger) record(code ErrorCode) *AuthError {
	l.Record(code, code.Description())
	e := l.entries[len(l.entries)-1]
	return &e
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Entries() []AuthError {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]AuthError, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Has(code ErrorCode) bool {
	for _, e := range l.entries {
		if e.Code == code {
			return true
		}
	}
	return false
}

func (l *Ledger) Codes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(l.entries))
	for _, e := range l.entries {
		codes = append(codes, e.Code)
	}
	return codes
}

func (l *Ledger) String() string {
	lines := make([]string, 0, len(l.entries))
	for i := range l.entries {
		lines = append(lines, l.entries[i].Error())
	}
	return strings.Join(lines, "\n")
}
