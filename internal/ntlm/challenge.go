package ntlm

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// ChallengeLayout selects the byte stream sent as the type-2 message.
type ChallengeLayout int

const (
	// ChallengeCompact is the 32-byte message: header, empty target name,
	// flags and an all-zero server challenge.
	ChallengeCompact ChallengeLayout = iota
	// ChallengeLegacy is the 40-byte stream older deployments of this
	// handshake emitted, with a fixed 00 02 02 02 nonce and a reserved block.
	ChallengeLegacy
)

const (
	challengeFlags      = ntlmNegotiateUnicode | ntlmNegotiateNTLM | ntlmNegotiateAlwaysSign
	challengeHeaderSize = 32
)

var legacyServerChallenge = [8]byte{0x00, 0x02, 0x02, 0x02, 0x00, 0x00, 0x00, 0x00}

func ParseChallengeLayout(s string) (ChallengeLayout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "compact":
		return ChallengeCompact, nil
	case "legacy":
		return ChallengeLegacy, nil
	}
	return ChallengeCompact, fmt.Errorf("unknown NTLM challenge layout %q", s)
}

func (l ChallengeLayout) String() string {
	if l == ChallengeLegacy {
		return "legacy"
	}
	return "compact"
}

type ntlmMessageHeader struct {
	Signature   [8]byte
	MessageType uint32
}

func newNTLMMessageHeader(messageType byte) ntlmMessageHeader {
	var sig [8]byte
	copy(sig[:], ntlmSignature)
	return ntlmMessageHeader{Signature: sig, MessageType: uint32(messageType)}
}

type ntlmVarField struct {
	Len          uint16
	MaxLen       uint16
	BufferOffset uint32
}

type ntlmChallengeMessageFields struct {
	Header          ntlmMessageHeader
	TargetName      ntlmVarField
	NegotiateFlags  uint32
	ServerChallenge [8]byte
}

func buildChallengeMessage(layout ChallengeLayout) []byte {
	msg := ntlmChallengeMessageFields{
		Header:         newNTLMMessageHeader(ntlmMessageTypeChallenge),
		TargetName:     ntlmVarField{BufferOffset: challengeHeaderSize},
		NegotiateFlags: challengeFlags,
	}
	if layout == ChallengeLegacy {
		msg.ServerChallenge = legacyServerChallenge
	}

	var b bytes.Buffer
	// Writes to a bytes.Buffer of fixed-size fields cannot fail.
	_ = binary.Write(&b, binary.LittleEndian, &msg)
	if layout == ChallengeLegacy {
		b.Write(make([]byte, 8))
	}
	return b.Bytes()
}

// BuildChallengeToken returns the base64 type-2 message sent on the first
// leg. It is static; the response is never verified against it.
func BuildChallengeToken() string {
	return ChallengeToken(ChallengeCompact)
}

func ChallengeToken(layout ChallengeLayout) string {
	return base64.StdEncoding.EncodeToString(buildChallengeMessage(layout))
}
