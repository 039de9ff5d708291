package ntlm

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var errOddUTF16 = errors.New("odd-length UTF-16 data")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errOddUTF16
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\x00"), nil
}
