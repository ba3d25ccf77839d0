package apierrors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNewStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindMissingInput, http.StatusBadRequest},
		{KindBadRequest, http.StatusBadRequest},
		{KindResourceNotFound, http.StatusNotFound},
		{KindPatchConflict, http.StatusConflict},
		{KindValidationFailure, http.StatusUnprocessableEntity},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		p := New(c.kind, "detail")
		if p.Status != c.want {
			t.Errorf("New(%s).Status = %d, want %d", c.kind, p.Status, c.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	p := New(KindResourceNotFound, "job xyz not found")
	want := "resource_not_found: job xyz not found"
	if got := p.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapAndAs(t *testing.T) {
	cause := errors.New("connection refused")
	p := Wrap(KindInternal, "object store unavailable", cause)

	wrapped := errors.New("context: " + p.Error())
	_ = wrapped

	got, ok := As(p)
	if !ok || got != p {
		t.Fatalf("As(p) = %v, %v, want %v, true", got, ok, p)
	}
	if !errors.Is(p, cause) {
		t.Errorf("errors.Is(p, cause) = false, want true")
	}
}

func TestAsNotAProblem(t *testing.T) {
	_, ok := As(errors.New("plain error"))
	if ok {
		t.Error("As() on a plain error should return false")
	}
}

func TestType(t *testing.T) {
	p := New(KindPatchConflict, "")
	if p.Type() != "urn:ims:error:patch_conflict" {
		t.Errorf("Type() = %q", p.Type())
	}
}
