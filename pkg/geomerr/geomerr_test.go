package geomerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"profile", Profile("build", "need %d points", 3), ErrInvalidProfile},
		{"configuration", Configuration("sweep", "planes %s and %s", "XY", "XY"), ErrInvalidConfiguration},
		{"validation", Validation("thickness", "must be positive"), ErrValidation},
		{"construction", Construction("cut[0]", errors.New("empty")), ErrGeometryConstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Fatalf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if KindOf(tt.err) != tt.kind {
				t.Errorf("KindOf = %v, want %v", KindOf(tt.err), tt.kind)
			}
		})
	}
}

func TestConstructionKeepsCause(t *testing.T) {
	cause := errors.New("boolean failed")
	err := Construction("union", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if Construction("union", nil) != nil {
		t.Error("nil cause should give nil error")
	}
	if again := Construction("union", err); again != err {
		t.Error("rewrapping with the same op should be a no-op")
	}
}

func TestWithShape(t *testing.T) {
	err := WithShape(Profile("build", "bad tag"), "blanket")
	if !strings.Contains(err.Error(), `shape "blanket"`) {
		t.Errorf("message %q missing shape name", err)
	}
	wrapped := WithShape(fmt.Errorf("outer: %w", Validation("gap", "<= 0")), "ccs")
	if !errors.Is(wrapped, ErrValidation) {
		t.Error("wrapped kind lost")
	}
	plain := errors.New("plain")
	if WithShape(plain, "x") != plain {
		t.Error("non-taxonomy errors should pass through")
	}
}
