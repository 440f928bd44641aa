package recognition

import (
	"errors"
	"fmt"
)

// Kind classifies a recognition failure so callers can react without
// parsing messages. Transport layers map kinds to status codes.
type Kind string

const (
	KindFaceNotDetected Kind = "face_not_detected"
	KindMultipleFaces   Kind = "multiple_faces"
	KindPoorQuality     Kind = "poor_quality"
	KindPersonExists    Kind = "person_exists"
	KindPersonNotFound  Kind = "person_not_found"
	KindNoMatch         Kind = "no_match"
	KindStorage         Kind = "storage"
	KindModel           Kind = "model"
)

// Error is a classified recognition failure. PersonID is set when the
// failure concerns a specific identity; ImageIndex points at the offending
// image in a batch (-1 when not applicable).
type Error struct {
	Kind       Kind
	Message    string
	PersonID   string
	ImageIndex int
	Err        error
}

func (e *Error) Error() string {
	if e.ImageIndex >= 0 {
		return fmt.Sprintf("%s (image %d): %s", e.Kind, e.ImageIndex, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error without an image position.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ImageIndex: -1}
}

// NewImageError builds a classified error tied to a batch position.
func NewImageError(kind Kind, index int, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ImageIndex: index}
}

// IsKind reports whether err is (or wraps) a recognition error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// KindOf extracts the kind of a recognition error, or KindModel for
// unclassified failures.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindModel
}
