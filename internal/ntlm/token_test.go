package ntlm

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeHeader(t *testing.T) {
	cases := []struct {
		value      string
		wantMethod Method
		wantOffset int
	}{
		{"NTLM TlRMTVNTUAAB", MethodNTLM, 5},
		{"Negotiate TlRMTVNTUAAB", MethodNegotiate, 10},
		{"NTLM ", MethodNTLM, 5},
		{"Negotiate ", MethodNegotiate, 10},
		{"ntlm abc", MethodUnset, 0},
		{"negotiate abc", MethodUnset, 0},
		{"NTLMabc", MethodUnset, 0},
		{"Negotiate", MethodUnset, 0},
		{"Basic abc", MethodUnset, 0},
		{"", MethodUnset, 0},
	}
	for _, tc := range cases {
		method, offset := DecodeHeader(tc.value)
		if method != tc.wantMethod || offset != tc.wantOffset {
			t.Fatalf("DecodeHeader(%q): expected %s/%d, got %s/%d", tc.value, tc.wantMethod, tc.wantOffset, method, offset)
		}
	}
}

func TestDecodeToken(t *testing.T) {
	negotiate := buildTestNTLMToken(ntlmMessageTypeNegotiate)
	token, err := DecodeToken(base64.StdEncoding.EncodeToString(negotiate))
	if err != nil {
		t.Fatalf("expected negotiate token to decode: %v", err)
	}
	if !token.IsNegotiate() || token.IsAuthenticate() {
		t.Fatalf("expected negotiate token, got type %d", token.Type())
	}
	if !bytes.Equal(token, negotiate) {
		t.Fatalf("expected decoded bytes to match input")
	}

	authenticate := buildTestNTLMToken(ntlmMessageTypeAuthenticate)
	token, err = DecodeToken(base64.StdEncoding.EncodeToString(authenticate) + " ")
	if err != nil {
		t.Fatalf("expected authenticate token to decode: %v", err)
	}
	if !token.IsAuthenticate() {
		t.Fatalf("expected authenticate token, got type %d", token.Type())
	}
}

func TestDecodeTokenErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    error
	}{
		{"not base64", "%%%", ErrTokenEncoding},
		{"empty", "", ErrTokenTooShort},
		{"eight bytes", base64.StdEncoding.EncodeToString([]byte(ntlmSignature)), ErrTokenTooShort},
		{"challenge type", base64.StdEncoding.EncodeToString(buildTestNTLMToken(ntlmMessageTypeChallenge)), ErrUnknownMessageType},
		{"zero type", base64.StdEncoding.EncodeToString(make([]byte, 9)), ErrUnknownMessageType},
	}
	for _, tc := range cases {
		if _, err := DecodeToken(tc.payload); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestDecodeTokenOnlyChecksTypeByte(t *testing.T) {
	raw := make([]byte, 9)
	raw[8] = 3
	if _, err := DecodeToken(base64.StdEncoding.EncodeToString(raw)); err != nil {
		t.Fatalf("expected unsigned type-3 token to decode: %v", err)
	}
}

func TestExtractIdentityMixedEncoding(t *testing.T) {
	msg := buildTestAuthenticateMessage([]byte("CORP"), encodeUTF16("alice"), 0)

	if got := msg[32]; got != 64 {
		t.Fatalf("expected domain offset 64, got %d", got)
	}
	if got := msg[30]; got != 4 {
		t.Fatalf("expected domain length 4, got %d", got)
	}
	if got := msg[40]; got != 68 {
		t.Fatalf("expected user offset 68, got %d", got)
	}
	if got := msg[38]; got != 10 {
		t.Fatalf("expected user length 10, got %d", got)
	}

	domain, user, err := ExtractIdentity(msg)
	if err != nil {
		t.Fatalf("expected identity: %v", err)
	}
	if domain != "CORP" || user != "alice" {
		t.Fatalf("expected CORP/alice, got %q/%q", domain, user)
	}
}

func TestExtractIdentityStripsNUL(t *testing.T) {
	msg := buildTestAuthenticateMessage(encodeUTF16("CONTOSO"), encodeUTF16("bob.smith"), ntlmNegotiateUnicode)
	domain, user, err := ExtractIdentity(msg)
	if err != nil {
		t.Fatalf("expected identity: %v", err)
	}
	if domain != "CONTOSO" || user != "bob.smith" {
		t.Fatalf("expected CONTOSO/bob.smith, got %q/%q", domain, user)
	}
	if bytes.IndexByte([]byte(domain+user), 0) >= 0 {
		t.Fatalf("expected NUL bytes to be stripped")
	}
}

func TestExtractIdentityEmptyFields(t *testing.T) {
	msg := buildTestAuthenticateMessage([]byte("CORP"), nil, 0)
	domain, user, err := ExtractIdentity(msg)
	if err != nil {
		t.Fatalf("expected parse to succeed: %v", err)
	}
	if domain != "CORP" || user != "" {
		t.Fatalf("expected CORP with empty user, got %q/%q", domain, user)
	}
}

func TestExtractIdentityBounds(t *testing.T) {
	msg := buildTestAuthenticateMessage([]byte("CORP"), []byte("alice"), 0)

	if _, _, err := ExtractIdentity(msg[:41]); !errors.Is(err, ErrTokenTooShort) {
		t.Fatalf("expected short header error, got %v", err)
	}
	if _, _, err := ExtractIdentity(msg[:70]); !errors.Is(err, ErrFieldOutOfRange) {
		t.Fatalf("expected truncated user field error, got %v", err)
	}

	bad := append([]byte(nil), msg...)
	bad[32], bad[33] = 0xFF, 0xFF
	if _, _, err := ExtractIdentity(bad); !errors.Is(err, ErrFieldOutOfRange) {
		t.Fatalf("expected out-of-range domain error, got %v", err)
	}
}

func TestExtractIdentityUnicodeDecoding(t *testing.T) {
	msg := buildTestAuthenticateMessage(encodeUTF16("KÖLN"), encodeUTF16("zoë"), ntlmNegotiateUnicode)

	domain, user, err := extractIdentity(msg, true)
	if err != nil {
		t.Fatalf("expected identity: %v", err)
	}
	if domain != "KÖLN" || user != "zoë" {
		t.Fatalf("expected KÖLN/zoë, got %q/%q", domain, user)
	}

	domain, _, err = extractIdentity(msg, false)
	if err != nil {
		t.Fatalf("expected identity: %v", err)
	}
	if domain == "KÖLN" {
		t.Fatalf("expected NUL stripping to differ from UTF-16 decoding for non-ASCII names")
	}
}

func TestExtractIdentityUnicodeRequiresFlag(t *testing.T) {
	msg := buildTestAuthenticateMessage([]byte("CORP"), encodeUTF16("alice"), 0)
	domain, user, err := extractIdentity(msg, true)
	if err != nil {
		t.Fatalf("expected identity: %v", err)
	}
	if domain != "CORP" || user != "alice" {
		t.Fatalf("expected CORP/alice without unicode flag, got %q/%q", domain, user)
	}
}

func TestDecodeUTF16OddLength(t *testing.T) {
	if _, err := decodeUTF16([]byte{0x41}); err == nil {
		t.Fatalf("expected error for odd-length UTF-16 data")
	}
	got, err := decodeUTF16(append(encodeUTF16("hi"), 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hi" {
		t.Fatalf("expected %q, got %q", "hi", got)
	}
}
