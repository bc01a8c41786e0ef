package ingest

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/investmcp/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding is one candidate text encoding for a CSV file.
type Encoding struct {
	Name   string
	Decode func([]byte) (string, error)
}

// DefaultEncodings is the fixed order in which CSV files are decoded.
//
// Latin-1 maps every byte, so it never fails and cp932 is only reached if
// Latin-1 is removed from the list. x/text's Shift_JIS decoder already
// understands the Windows (cp932) extensions.
var DefaultEncodings = []Encoding{
	{Name: "utf-8", Decode: decodeUTF8},
	{Name: "shift_jis", Decode: decodeWith(japanese.ShiftJIS)},
	{Name: "iso-8859-1", Decode: decodeWith(charmap.ISO8859_1)},
	{Name: "cp932", Decode: decodeWith(japanese.ShiftJIS)},
}

// Decode tries each encoding in order and returns the text and the name of
// the first one that decodes without error.
func Decode(data []byte, encodings []Encoding) (string, string, error) {
	for _, enc := range encodings {
		text, err := enc.Decode(data)
		if err == nil {
			return text, enc.Name, nil
		}
	}
	return "", "", core.ErrUnsupportedEncoding
}

// decodeUTF8 accepts only valid UTF-8 and drops a leading byte order mark,
// which spreadsheet exports commonly add and which would otherwise become
// part of the first header name.
func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("invalid utf-8")
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// decodeWith wraps an x/text encoding. x/text decoders substitute U+FFFD for
// undecodable input instead of failing, so a replacement rune in the output
// is treated as a decode failure.
func decodeWith(enc encoding.Encoding) func([]byte) (string, error) {
	return func(data []byte) (string, error) {
		out, _, err := transform.Bytes(enc.NewDecoder(), data)
		if err != nil {
			return "", err
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			return "", fmt.Errorf("undecodable input")
		}
		return string(out), nil
	}
}
