package subscription

import "github.com/pkg/errors"

var (
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrChannelUnavailable = errors.New("channel lookup unavailable")
	ErrStorage            = errors.New("storage failure")
	ErrHub                = errors.New("hub request failed")
	ErrAlreadySubscribed  = errors.New("already subscribed")
)

// kindError tags a cause with one of the error kinds above.
// errors.Is matches both the kind and anything in the cause chain.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func wrap(kind, cause error, message string) error {
	return &kindError{kind: kind, cause: errors.WithMessage(cause, message)}
}
