package chat

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/colloquy/pkg/store"
)

var (
	// ErrNotFound is returned for missing resources and for private chats the
	// caller may not see, so their existence is not revealed.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may see a resource but not
	// change it.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when no caller identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidRequest wraps caller input errors.
	ErrInvalidRequest = errors.New("invalid request")
)

// translate maps store sentinels onto the service's own.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errors.Wrap(ErrNotFound, what)
	case errors.Is(err, store.ErrValidation):
		return errors.Wrapf(ErrInvalidRequest, "%s: %v", what, err)
	default:
		return errors.Wrap(err, what)
	}
}
