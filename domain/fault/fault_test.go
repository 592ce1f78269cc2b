package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Usage, "UsageFault"},
		{Transient, "TransientFault"},
		{Fatal, "FatalFault"},
		{Default, "DefaultFault"},
		{Kind(42), "DefaultFault"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestFault_Error(t *testing.T) {
	f := Usagef("Unrecognized shape in POS string '%s'", "SOME_SHAPE 1 2 3")
	want := "UsageFault: Unrecognized shape in POS string 'SOME_SHAPE 1 2 3'"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
	if f.StatusCode() != http.StatusBadRequest {
		t.Errorf("StatusCode() = %d, want 400", f.StatusCode())
	}
}

func TestNewf_KeepsWrappedError(t *testing.T) {
	sentinel := errors.New("not found")
	f := Usagef("Label %s not found in Data collections: %w", "x", sentinel)

	if !errors.Is(f, sentinel) {
		t.Error("errors.Is should reach the wrapped sentinel")
	}
	if f.Detail != "Label x not found in Data collections: not found" {
		t.Errorf("Detail = %q", f.Detail)
	}
}

func TestFrom(t *testing.T) {
	t.Run("passes faults through", func(t *testing.T) {
		orig := Fatalf("No default Collection found")
		wrapped := fmt.Errorf("resolve: %w", orig)

		got := From(wrapped)
		if got != orig {
			t.Errorf("From() = %v, want original fault", got)
		}
	})

	t.Run("wraps plain errors as default", func(t *testing.T) {
		got := From(errors.New("boom"))
		if got.Kind != Default {
			t.Errorf("Kind = %v, want Default", got.Kind)
		}
		if got.Error() != "DefaultFault: boom" {
			t.Errorf("Error() = %q", got.Error())
		}
	})

	t.Run("nil stays nil", func(t *testing.T) {
		if From(nil) != nil {
			t.Error("From(nil) should be nil")
		}
	})
}

func TestKindOfAndIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", Transientf("backend down"))

	if KindOf(err) != Transient {
		t.Errorf("KindOf() = %v, want Transient", KindOf(err))
	}
	if !Is(err, Transient) {
		t.Error("Is(Transient) = false")
	}
	if Is(err, Usage) {
		t.Error("Is(Usage) = true")
	}
	if KindOf(errors.New("plain")) != Default {
		t.Error("plain errors should be Default")
	}
}
