package serial

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Scheme selects the wire representation of session text.
type Scheme int

const (
	SchemeUTF8 Scheme = iota
	SchemeHex
	SchemeBinary
	SchemeASCII
	SchemeUTF16
	SchemeUTF32
	SchemeGBK
)

// placeholder replaces undecodable sequences. A visible glyph rather
// than U+FFFD so it stands out in a terminal-style view.
const placeholder = "❓"

var nonHex = regexp.MustCompile(`[^0-9a-fA-F]`)

var (
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	gbk     = simplifiedchinese.GBK
)

func (s Scheme) String() string {
	switch s {
	case SchemeHex:
		return "Hex"
	case SchemeBinary:
		return "Binary"
	case SchemeASCII:
		return "ASCII"
	case SchemeUTF16:
		return "UTF-16"
	case SchemeUTF32:
		return "UTF-32"
	case SchemeGBK:
		return "GBK"
	default:
		return "UTF-8"
	}
}

// Schemes lists every supported scheme, in frontend display order.
var Schemes = []Scheme{
	SchemeUTF8, SchemeHex, SchemeBinary, SchemeASCII,
	SchemeUTF16, SchemeUTF32, SchemeGBK,
}

// ParseScheme maps a display name back to a scheme.
func ParseScheme(name string) (Scheme, error) {
	for _, s := range Schemes {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return SchemeUTF8, fmt.Errorf("unknown encoding scheme %q", name)
}

// Encode converts user text into the bytes that go on the wire.
//
// Hex input may contain any separators; non-hex characters are stripped
// and an odd-length result is padded with a leading zero nibble, so
// "F" encodes to 0x0F. Malformed residue yields an empty slice and a
// logged error, never a failure.
func Encode(text string, scheme Scheme) []byte {
	switch scheme {
	case SchemeHex:
		return encodeHex(text)
	case SchemeUTF16:
		b, err := utf16LE.NewEncoder().Bytes([]byte(text))
		if err != nil {
			log.Error().Err(err).Msg("utf16 encoding error")
			return nil
		}
		return b
	case SchemeUTF32:
		return encodeUTF32(text)
	case SchemeGBK:
		b, err := encoding.ReplaceUnsupported(gbk.NewEncoder()).Bytes([]byte(text))
		if err != nil {
			log.Error().Err(err).Msg("gbk encoding error")
			return nil
		}
		return b
	default: // UTF-8, ASCII, Binary carry the raw byte representation.
		return []byte(text)
	}
}

// Decode converts wire bytes into display text.
func Decode(data []byte, scheme Scheme) string {
	switch scheme {
	case SchemeHex:
		return hex.EncodeToString(data)
	case SchemeBinary:
		groups := make([]string, len(data))
		for i, b := range data {
			groups[i] = fmt.Sprintf("%08b", b)
		}
		return strings.Join(groups, " ")
	case SchemeUTF16:
		b, err := utf16LE.NewDecoder().Bytes(data)
		if err != nil {
			return placeholder
		}
		return string(b)
	case SchemeUTF32:
		return decodeUTF32(data)
	case SchemeGBK:
		b, err := gbk.NewDecoder().Bytes(data)
		if err != nil {
			return placeholder
		}
		return string(b)
	default: // UTF-8, ASCII
		return strings.ToValidUTF8(string(data), placeholder)
	}
}

func encodeHex(text string) []byte {
	cleaned := nonHex.ReplaceAllString(text, "")
	if len(cleaned)%2 != 0 {
		cleaned = "0" + cleaned
	}
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		log.Error().Err(err).Msg("hex encoding error")
		return nil
	}
	return b
}

func encodeUTF32(text string) []byte {
	out := make([]byte, 0, len(text)*4)
	for _, r := range text {
		cp := uint32(r)
		out = append(out, byte(cp), byte(cp>>8), byte(cp>>16), byte(cp>>24))
	}
	return out
}

// decodeUTF32 groups little-endian 4-byte codepoints. Trailing
// incomplete groups are dropped, invalid codepoints render as the
// placeholder.
func decodeUTF32(data []byte) string {
	var sb strings.Builder
	for i := 0; i+4 <= len(data); i += 4 {
		cp := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		r := rune(cp)
		if cp > 0x10FFFF || (cp >= 0xD800 && cp <= 0xDFFF) {
			sb.WriteString(placeholder)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
