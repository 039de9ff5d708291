package ntlm

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
)

type ntlmAuthenticateMessageFields struct {
	Header                    ntlmMessageHeader
	LmChallengeResponse       ntlmVarField
	NtChallengeResponse       ntlmVarField
	DomainName                ntlmVarField
	UserName                  ntlmVarField
	Workstation               ntlmVarField
	EncryptedRandomSessionKey ntlmVarField
	NegotiateFlags            uint32
}

func newTestVarField(ptr *int, size int) ntlmVarField {
	f := ntlmVarField{
		Len:          uint16(size),
		MaxLen:       uint16(size),
		BufferOffset: uint32(*ptr),
	}
	*ptr += size
	return f
}

func encodeUTF16(s string) []byte {
	out, _ := utf16le.NewEncoder().Bytes([]byte(s))
	return out
}

func buildTestNTLMToken(messageType byte) []byte {
	token := make([]byte, 16)
	copy(token[:8], ntlmSignature)
	token[8] = messageType
	return token
}

// buildTestAuthenticateMessage lays out a type-3 message whose payload starts
// at byte 64 with the domain followed by the user name.
func buildTestAuthenticateMessage(domain, user []byte, flags uint32) []byte {
	payloadOffset := 64
	msg := ntlmAuthenticateMessageFields{
		Header:                    newNTLMMessageHeader(ntlmMessageTypeAuthenticate),
		LmChallengeResponse:       newTestVarField(&payloadOffset, 0),
		NtChallengeResponse:       newTestVarField(&payloadOffset, 0),
		DomainName:                newTestVarField(&payloadOffset, len(domain)),
		UserName:                  newTestVarField(&payloadOffset, len(user)),
		Workstation:               newTestVarField(&payloadOffset, 0),
		EncryptedRandomSessionKey: newTestVarField(&payloadOffset, 0),
		NegotiateFlags:            flags,
	}

	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, &msg)
	_, _ = b.Write(domain)
	_, _ = b.Write(user)
	return b.Bytes()
}

func authorization(scheme string, token []byte) string {
	return scheme + " " + base64.StdEncoding.EncodeToString(token)
}
