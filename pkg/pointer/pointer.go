// Package pointer encodes and decodes the small text records that stand in
// for asset content inside git history.
//
// A version 1 pointer looks like this:
//
//	git-assets v1
//	fbbeac4b21cc086bfd7ed8b9c7b99e014e436b8bb0069114054ca374e8e69b26
//	size 32
//
// The size line is optional. Pointers written without it still decode, with
// Size set to UnknownSize.
package pointer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/git-lfs/git-lfs/v3/lfs"

	"github.com/wzshiming/gitassets/pkg/hash"
)

// Pointers are small and have a fixed format, anything bigger is content.
const MaxPointerSize = 1024

// UnknownSize is the Size of a pointer that carries no size line.
const UnknownSize int64 = -1

const (
	scheme  = "git-assets"
	version = "v1"
	header  = scheme + " " + version
)

var (
	ErrMalformedPointer = errors.New("malformed pointer")
)

// Pointer references one store entry by its content hash.
type Pointer struct {
	Hash hash.Hash
	Size int64
}

// New returns a Pointer for content with the given hash and length.
func New(h hash.Hash, size int64) Pointer {
	if size < 0 {
		size = UnknownSize
	}
	return Pointer{Hash: h, Size: size}
}

// HasSize reports whether p records the content length.
func (p Pointer) HasSize() bool {
	return p.Size >= 0
}

// Encode returns the canonical text form of p.
func Encode(p Pointer) []byte {
	var buf bytes.Buffer
	buf.Grow(len(header) + hash.HexSize + 32)
	buf.WriteString(header)
	buf.WriteByte('\n')
	buf.WriteString(p.Hash.String())
	buf.WriteByte('\n')
	if p.HasSize() {
		buf.WriteString("size ")
		buf.WriteString(strconv.FormatInt(p.Size, 10))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func (p Pointer) String() string {
	return string(Encode(p))
}

// WriteTo writes the canonical text form of p to w.
func (p Pointer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(Encode(p))
	return int64(n), err
}

// DecodeError describes why some input is not a pointer.
type DecodeError struct {
	Reason string
	// LFSOid is set when the input is a Git LFS pointer instead.
	LFSOid string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := ErrMalformedPointer.Error() + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedPointer
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func malformed(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}

// Decode reads and parses a pointer from r. It reads at most
// MaxPointerSize+1 bytes, so it is safe to call on arbitrary content.
func Decode(r io.Reader) (Pointer, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPointerSize+1))
	if err != nil {
		return Pointer{}, err
	}
	return DecodeBytes(data)
}

// DecodeBytes parses a pointer from data.
func DecodeBytes(data []byte) (Pointer, error) {
	if len(data) == 0 {
		return Pointer{}, malformed("input is empty", nil)
	}
	if len(data) > MaxPointerSize {
		return Pointer{}, malformed(fmt.Sprintf("input is larger than %d bytes", MaxPointerSize), nil)
	}

	text := string(data)
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")

	if lines[0] != header {
		if lines[0] == header+"\r" {
			return Pointer{}, malformed("CRLF line endings (set -text in .gitattributes)", nil)
		}
		if v, ok := strings.CutPrefix(lines[0], scheme+" "); ok && len(v) < 16 && strings.HasPrefix(v, "v") {
			return Pointer{}, malformed(fmt.Sprintf("unsupported version %q", v), nil)
		}
		if p, err := lfs.DecodePointer(bytes.NewReader(data)); err == nil {
			return Pointer{}, &DecodeError{
				Reason: fmt.Sprintf("input is a Git LFS pointer (oid %s)", p.Oid),
				LFSOid: p.Oid,
			}
		}
		return Pointer{}, malformed("missing "+strconv.Quote(header)+" header", nil)
	}

	if len(lines) < 2 {
		return Pointer{}, malformed("truncated after header", nil)
	}
	h, err := hash.Parse(lines[1])
	if err != nil {
		return Pointer{}, malformed("bad hash line", err)
	}

	p := Pointer{Hash: h, Size: UnknownSize}
	for i, line := range lines[2:] {
		key, value, ok := strings.Cut(line, " ")
		if !ok || !validKey(key) {
			return Pointer{}, malformed(fmt.Sprintf("bad line %d %q", i+3, line), nil)
		}
		if key != "size" {
			// Unknown keys come from newer v1 writers.
			continue
		}
		if p.HasSize() {
			return Pointer{}, malformed("duplicate size line", nil)
		}
		size, err := parseSize(value)
		if err != nil {
			return Pointer{}, malformed("bad size line", err)
		}
		p.Size = size
	}
	return p, nil
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

// parseSize accepts plain non-negative decimals, the form Encode writes.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty size")
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("size %q has leading zeros", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("size %q is not a decimal number", s)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
