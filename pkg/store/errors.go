package store

import (
	"errors"

	kerrors "github.com/vango-dev/kodbox/internal/errors"
	"github.com/vango-dev/kodbox/pkg/mirror"
)

// Errors returned by the store. They match with errors.Is by code.
var (
	// ErrNotBound is returned by InvokeAsync for an unregistered name.
	ErrNotBound error = kerrors.New("K001")

	// ErrLocked is returned when a plain write or removal hits a locked entry.
	ErrLocked error = kerrors.New("K010")

	// ErrSerialize is returned when the state cannot be encoded for the mirror.
	ErrSerialize error = kerrors.New("K020")

	// ErrMirrorWrite is returned when the mirror rejects a snapshot write.
	ErrMirrorWrite error = kerrors.New("K021")

	// ErrMirrorClear is returned when the mirror cannot clear the snapshot.
	ErrMirrorClear error = kerrors.New("K022")

	// ErrMirrorRead is returned by Hydrate when the mirror cannot be read.
	ErrMirrorRead error = kerrors.New("K023")

	// ErrClosed is returned instead of ErrMirrorWrite, ErrMirrorClear or
	// ErrMirrorRead when the mirror's backend has been closed.
	ErrClosed error = kerrors.New("K030")
)

var errNullSnapshot = errors.New("snapshot is null")

// mirrorError wraps a mirror failure in code, or in K030 for a closed backend.
func mirrorError(code string, err error) error {
	if errors.As(err, new(mirror.ErrBackendClosed)) {
		code = "K030"
	}
	return kerrors.New(code).Wrap(err)
}
