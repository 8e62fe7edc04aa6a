package serial

import (
	"bytes"
	"testing"
)

func TestEncodeHex(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
	}{
		{"48656C6C6F", []byte("Hello")},
		{"48 65-6C 6C 6F", []byte("Hello")},
		{"48,65", []byte("He")},
		// odd length pads a leading zero nibble
		{"F", []byte{0x0F}},
		{"ABC", []byte{0x0A, 0xBC}},
		{"", nil},
		// nothing but separators
		{"--  ,,", nil},
	}
	for _, tc := range cases {
		got := Encode(tc.in, SchemeHex)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("Encode(%q, hex) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDecodeHex(t *testing.T) {
	if got := Decode([]byte{0xDE, 0xAD, 0xBE, 0xEF}, SchemeHex); got != "deadbeef" {
		t.Errorf("Decode hex = %q, want %q", got, "deadbeef")
	}
}

func TestDecodeBinary(t *testing.T) {
	got := Decode([]byte{0x00, 0xFF, 0x41}, SchemeBinary)
	want := "00000000 11111111 01000001"
	if got != want {
		t.Errorf("Decode binary = %q, want %q", got, want)
	}
}

func TestUTF8PassThrough(t *testing.T) {
	text := "héllo wörld"
	if got := string(Encode(text, SchemeUTF8)); got != text {
		t.Errorf("Encode utf-8 = %q, want %q", got, text)
	}
	if got := Decode([]byte(text), SchemeUTF8); got != text {
		t.Errorf("Decode utf-8 = %q, want %q", got, text)
	}
}

func TestDecodeInvalidUTF8UsesPlaceholder(t *testing.T) {
	got := Decode([]byte{'a', 0xFF, 'b'}, SchemeUTF8)
	want := "a" + placeholder + "b"
	if got != want {
		t.Errorf("Decode = %q, want %q", got, want)
	}
}

func TestUTF16RoundTrip(t *testing.T) {
	text := "Hi ☺"
	enc := Encode(text, SchemeUTF16)
	// little endian, no BOM
	if enc[0] != 'H' || enc[1] != 0 {
		t.Fatalf("unexpected utf-16 prefix: %v", enc[:2])
	}
	if got := Decode(enc, SchemeUTF16); got != text {
		t.Errorf("utf-16 round trip = %q, want %q", got, text)
	}
}

func TestUTF32RoundTrip(t *testing.T) {
	text := "A€"
	enc := Encode(text, SchemeUTF32)
	want := []byte{0x41, 0, 0, 0, 0xAC, 0x20, 0, 0}
	if !bytes.Equal(enc, want) {
		t.Fatalf("Encode utf-32 = %v, want %v", enc, want)
	}
	if got := Decode(enc, SchemeUTF32); got != text {
		t.Errorf("utf-32 round trip = %q, want %q", got, text)
	}
}

func TestDecodeUTF32Invalid(t *testing.T) {
	// surrogate codepoint renders as the placeholder
	enc := []byte{0x00, 0xD8, 0, 0}
	if got := Decode(enc, SchemeUTF32); got != placeholder {
		t.Errorf("Decode = %q, want placeholder", got)
	}
	// trailing incomplete group is dropped
	enc = []byte{0x41, 0, 0, 0, 0x42}
	if got := Decode(enc, SchemeUTF32); got != "A" {
		t.Errorf("Decode = %q, want %q", got, "A")
	}
}

func TestGBKRoundTrip(t *testing.T) {
	text := "你好"
	enc := Encode(text, SchemeGBK)
	if len(enc) != 4 {
		t.Fatalf("gbk encoding length = %d, want 4", len(enc))
	}
	if got := Decode(enc, SchemeGBK); got != text {
		t.Errorf("gbk round trip = %q, want %q", got, text)
	}
}

func TestParseScheme(t *testing.T) {
	for _, s := range Schemes {
		got, err := ParseScheme(s.String())
		if err != nil || got != s {
			t.Errorf("ParseScheme(%q) = %v, %v", s.String(), got, err)
		}
	}
	if got, err := ParseScheme("utf-8"); err != nil || got != SchemeUTF8 {
		t.Errorf("ParseScheme is not case-insensitive: %v, %v", got, err)
	}
	if _, err := ParseScheme("morse"); err == nil {
		t.Error("expected error for unknown scheme")
	}
}
