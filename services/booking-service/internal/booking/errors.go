package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

// Kind classifies failures for callers. Transports map kinds to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindInactiveSpace
	KindConflict
	KindNotFound
	KindUnavailable // retryable
	KindUnauthenticated
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindInactiveSpace:
		return "inactive_space"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	errNoCaller  = errors.New("caller identity required")
	errAdminOnly = errors.New("admin role required")
	errNotYours  = errors.New("bookings of another user")
)

// KindOf returns the kind of err, classifying plain errors on the fly.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, model.ErrConflict):
		return KindConflict
	case errors.Is(err, model.ErrInactiveSpace):
		return KindInactiveSpace
	case errors.Is(err, model.ErrInvalidInterval), errors.Is(err, model.ErrSpaceNotFound):
		return KindInvalid
	case errors.Is(err, model.ErrNotFound):
		return KindNotFound
	case errors.Is(err, model.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindUnavailable
	default:
		return KindInternal
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

func invalid(op, format string, args ...any) error {
	return &Error{Kind: KindInvalid, Op: op, Err: fmt.Errorf(format, args...)}
}
