package ntlm

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
)

const (
	ntlmSignature = "NTLMSSP\x00"

	ntlmMessageTypeNegotiate    byte = 1
	ntlmMessageTypeChallenge    byte = 2
	ntlmMessageTypeAuthenticate byte = 3

	ntlmNegotiateUnicode    uint32 = 1 << 0
	ntlmNegotiateNTLM       uint32 = 1 << 9
	ntlmNegotiateAlwaysSign uint32 = 1 << 15

	ntlmPrefix      = "NTLM "
	negotiatePrefix = "Negotiate "

	// Byte positions inside an authenticate message. The length and offset of
	// each security buffer are read as two adjacent uint16 values.
	messageTypeIndex    = 8
	domainLengthIndex   = 30
	domainOffsetIndex   = 32
	userLengthIndex     = 38
	userOffsetIndex     = 40
	authenticateFlagsAt = 60
)

var (
	ErrTokenEncoding      = errors.New("NTLM token is not valid base64")
	ErrTokenTooShort      = errors.New("NTLM token too short")
	ErrUnknownMessageType = errors.New("unsupported NTLM message type")
	ErrFieldOutOfRange    = errors.New("NTLM security buffer exceeds token")
)

// Method is the authentication scheme named by the Authorization header.
type Method int

const (
	MethodUnset Method = iota
	MethodNTLM
	MethodNegotiate
)

func (m Method) String() string {
	switch m {
	case MethodNTLM:
		return "NTLM"
	case MethodNegotiate:
		return "NEGOTIATE"
	default:
		return "UNSET"
	}
}

// DecodeHeader classifies an Authorization value and returns the byte offset
// at which its base64 payload starts. Prefixes are matched case-sensitively.
func DecodeHeader(value string) (Method, int) {
	switch {
	case strings.HasPrefix(value, ntlmPrefix):
		return MethodNTLM, len(ntlmPrefix)
	case strings.HasPrefix(value, negotiatePrefix):
		return MethodNegotiate, len(negotiatePrefix)
	}
	return MethodUnset, 0
}

// Token is a base64-decoded NTLM security token.
type Token []byte

func (t Token) Type() byte {
	if len(t) <= messageTypeIndex {
		return 0
	}
	return t[messageTypeIndex]
}

func (t Token) IsNegotiate() bool {
	return t.Type() == ntlmMessageTypeNegotiate
}

func (t Token) IsAuthenticate() bool {
	return t.Type() == ntlmMessageTypeAuthenticate
}

func DecodeToken(payload string) (Token, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, ErrTokenEncoding
	}
	if len(data) <= messageTypeIndex {
		return nil, ErrTokenTooShort
	}
	token := Token(data)
	if !token.IsNegotiate() && !token.IsAuthenticate() {
		return nil, ErrUnknownMessageType
	}
	return token, nil
}

type securityBuffer struct {
	Len    uint16
	Offset uint16
}

func readSecurityBuffer(data []byte, lengthAt, offsetAt int) (securityBuffer, error) {
	if len(data) < lengthAt+2 || len(data) < offsetAt+2 {
		return securityBuffer{}, ErrTokenTooShort
	}
	return securityBuffer{
		Len:    binary.LittleEndian.Uint16(data[lengthAt:]),
		Offset: binary.LittleEndian.Uint16(data[offsetAt:]),
	}, nil
}

func (b securityBuffer) readFrom(data []byte) ([]byte, error) {
	end := int(b.Offset) + int(b.Len)
	if end > len(data) {
		return nil, ErrFieldOutOfRange
	}
	return data[b.Offset:end], nil
}

// ExtractIdentity reads the domain and user name fields of an authenticate
// message with NUL bytes stripped. An empty user means nothing usable was
// found.
func ExtractIdentity(raw Token) (string, string, error) {
	return extractIdentity(raw, false)
}

func extractIdentity(raw Token, decodeUnicode bool) (string, string, error) {
	domainField, err := readSecurityBuffer(raw, domainLengthIndex, domainOffsetIndex)
	if err != nil {
		return "", "", err
	}
	userField, err := readSecurityBuffer(raw, userLengthIndex, userOffsetIndex)
	if err != nil {
		return "", "", err
	}
	domainBytes, err := domainField.readFrom(raw)
	if err != nil {
		return "", "", err
	}
	userBytes, err := userField.readFrom(raw)
	if err != nil {
		return "", "", err
	}

	unicode := decodeUnicode && negotiatedUnicode(raw)
	return decodeName(domainBytes, unicode), decodeName(userBytes, unicode), nil
}

func negotiatedUnicode(raw Token) bool {
	if len(raw) < authenticateFlagsAt+4 {
		return false
	}
	return binary.LittleEndian.Uint32(raw[authenticateFlagsAt:])&ntlmNegotiateUnicode != 0
}

func decodeName(field []byte, unicode bool) string {
	if unicode {
		if name, err := decodeUTF16(field); err == nil {
			return name
		}
	}
	return string(bytes.ReplaceAll(field, []byte{0}, nil))
}
