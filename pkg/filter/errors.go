package filter

import (
	"errors"
	"fmt"

	"github.com/wzshiming/gitassets/pkg/hash"
	"github.com/wzshiming/gitassets/pkg/pointer"
	"github.com/wzshiming/gitassets/pkg/store"
)

// Kind classifies filter failures so callers can tell a broken filter
// setup from a store that is missing content.
type Kind int

const (
	KindIO Kind = iota + 1
	KindMalformedPointer
	KindNotFound
	KindCorrupt
	KindNotRepository
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindMalformedPointer:
		return "malformed-pointer"
	case KindNotFound:
		return "not-found"
	case KindCorrupt:
		return "corrupt"
	case KindNotRepository:
		return "not-repository"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is returned by Clean and Smudge.
type Error struct {
	Kind Kind
	// Path is the working tree path git passed to the filter, if any.
	Path string
	Hash hash.Hash
	// Root is the store root. It is set when the error concerns the single
	// entry named by Hash.
	Root string
	Err  error
}

func (e *Error) Error() string {
	prefix := ""
	if e.Path != "" {
		prefix = e.Path + ": "
	}
	switch {
	case e.Kind == KindMalformedPointer:
		return fmt.Sprintf("%sinput is not a git-assets pointer (%v); check the filter configuration in .gitattributes", prefix, e.Err)
	case e.Root == "":
		return fmt.Sprintf("%s%v", prefix, e.Err)
	case e.Kind == KindNotFound:
		return fmt.Sprintf("%scontent %s is not in the store at %s; the store may not be synchronized from where it was committed", prefix, e.Hash, e.Root)
	case e.Kind == KindCorrupt:
		return fmt.Sprintf("%sstore entry %s is corrupt: %v; run git-assets validate", prefix, e.Hash, e.Err)
	default:
		return fmt.Sprintf("%scontent %s: %v", prefix, e.Hash, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 for nil.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, pointer.ErrMalformedPointer):
		return KindMalformedPointer
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	}
	return KindIO
}

// ExitCode maps err to the process exit status reported to git.
func ExitCode(err error) int {
	switch KindOf(err) {
	case 0:
		return 0
	case KindMalformedPointer:
		return 2
	case KindNotFound:
		return 3
	case KindCorrupt:
		return 4
	case KindNotRepository:
		return 5
	default:
		return 1
	}
}
