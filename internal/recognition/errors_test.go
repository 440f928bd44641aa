package recognition

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			"without index",
			NewError(KindPersonNotFound, "person %q not registered", "alice"),
			`person_not_found: person "alice" not registered`,
		},
		{
			"with index",
			NewImageError(KindPoorQuality, 2, "quality 0.25 below threshold"),
			"poor_quality (image 2): quality 0.25 below threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := NewImageError(KindMultipleFaces, 0, "found 3 faces")

	if !IsKind(err, KindMultipleFaces) {
		t.Error("expected IsKind to match the error's kind")
	}
	if IsKind(err, KindFaceNotDetected) {
		t.Error("expected IsKind to reject a different kind")
	}
	if IsKind(errors.New("plain"), KindMultipleFaces) {
		t.Error("expected IsKind to reject unclassified errors")
	}

	wrapped := fmt.Errorf("register: %w", err)
	if !IsKind(wrapped, KindMultipleFaces) {
		t.Error("expected IsKind to see through wrapping")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewError(KindStorage, "insert failed")); got != KindStorage {
		t.Errorf("KindOf = %s, want %s", got, KindStorage)
	}
	if got := KindOf(errors.New("boom")); got != KindModel {
		t.Errorf("KindOf for unclassified = %s, want %s", got, KindModel)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Kind: KindStorage, Message: "insert failed", ImageIndex: -1, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
}
