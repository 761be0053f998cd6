package pointer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/wzshiming/gitassets/pkg/hash"
)

const testHash = "fbbeac4b21cc086bfd7ed8b9c7b99e014e436b8bb0069114054ca374e8e69b26"

func mustParse(t *testing.T, s string) hash.Hash {
	t.Helper()
	h, err := hash.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return h
}

func TestEncode(t *testing.T) {
	h := mustParse(t, testHash)

	got := string(Encode(New(h, 32)))
	want := "git-assets v1\n" + testHash + "\nsize 32\n"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}

	got = string(Encode(New(h, UnknownSize)))
	want = "git-assets v1\n" + testHash + "\n"
	if got != want {
		t.Errorf("Encode(no size) = %q, want %q", got, want)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	p := New(hash.Sum([]byte("hello world")), 11)
	if !bytes.Equal(Encode(p), Encode(p)) {
		t.Error("Encode is not deterministic")
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int64{UnknownSize, 0, 1, 11, 1 << 40}
	for _, content := range []string{"", "hello world", "\x00\x01\x02"} {
		for _, size := range sizes {
			p := New(hash.Sum([]byte(content)), size)
			got, err := DecodeBytes(Encode(p))
			if err != nil {
				t.Fatalf("DecodeBytes(Encode(%v)): %v", p, err)
			}
			if got != p {
				t.Errorf("round-trip = %+v, want %+v", got, p)
			}
		}
	}
}

func TestDecodeWithoutSizeLine(t *testing.T) {
	h := mustParse(t, testHash)
	for _, input := range []string{
		"git-assets v1\n" + testHash + "\n",
		"git-assets v1\n" + testHash,
	} {
		p, err := Decode(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Decode(%q): %v", input, err)
		}
		if p.Hash != h || p.HasSize() {
			t.Errorf("Decode(%q) = %+v, want hash %s without size", input, p, h)
		}
	}
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	input := "git-assets v1\n" + testHash + "\nsize 5\nx-origin laptop\n"
	p, err := DecodeBytes([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if p.Size != 5 {
		t.Errorf("Size = %d, want 5", p.Size)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "", "empty"},
		{"not a pointer", "not a pointer", "header"},
		{"binary", "\x89PNG\r\n\x1a\n\x00\x00", "header"},
		{"header only", "git-assets v1\n", "truncated"},
		{"future version", "git-assets v2\n" + testHash + "\n", "unsupported version"},
		{"short hash", "git-assets v1\nabcd\n", "bad hash"},
		{"uppercase hash", "git-assets v1\n" + strings.ToUpper(testHash) + "\n", "bad hash"},
		{"negative size", "git-assets v1\n" + testHash + "\nsize -1\n", "bad size"},
		{"leading zero size", "git-assets v1\n" + testHash + "\nsize 011\n", "bad size"},
		{"duplicate size", "git-assets v1\n" + testHash + "\nsize 1\nsize 1\n", "duplicate size"},
		{"blank line", "git-assets v1\n" + testHash + "\n\n", "bad line"},
		{"crlf", "git-assets v1\r\n" + testHash + "\r\n", "CRLF line endings"},
		{"crlf header only", "git-assets v1\r\n", "CRLF line endings"},
		{"oversized", "git-assets v1\n" + testHash + "\n" + strings.Repeat("x-pad y\n", 200), "larger than"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(test.input))
			if !errors.Is(err, ErrMalformedPointer) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformedPointer", test.input, err)
			}
			if !strings.Contains(err.Error(), test.reason) {
				t.Errorf("error %q does not mention %q", err, test.reason)
			}
		})
	}
}

func TestDecodeLFSPointer(t *testing.T) {
	input := "version https://git-lfs.github.com/spec/v1\n" +
		"oid sha256:" + testHash + "\n" +
		"size 32\n"

	_, err := DecodeBytes([]byte(input))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("DecodeBytes error = %v, want *DecodeError", err)
	}
	if decodeErr.LFSOid != testHash {
		t.Errorf("LFSOid = %q, want %q", decodeErr.LFSOid, testHash)
	}
	if !strings.Contains(err.Error(), "Git LFS") {
		t.Errorf("error %q does not mention Git LFS", err)
	}
}
