package common

import "errors"

// Default not found messages per record kind.
const (
	DefaultEntityNotFoundMessage   = "Entity not found"
	DefaultDocumentNotFoundMessage = "Document not found"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPagination = errors.New("invalid pagination options")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownRelation   = errors.New("unknown relation")
	ErrNilRecord         = errors.New("nil record")
)

// NotFoundError is returned by the OrFail lookups when nothing matches.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError carrying message, or fallback when
// message is empty.
func NotFound(message, fallback string) error {
	if message == "" {
		message = fallback
	}

	return &NotFoundError{Message: message}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
