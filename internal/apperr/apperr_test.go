package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_wrapped(t *testing.T) {
	base := Validation("documentIds", "must not be empty")
	wrapped := fmt.Errorf("ask: %w", base)
	if got := KindOf(wrapped); got != KindValidation {
		t.Errorf("KindOf = %v, want validation", got)
	}
	if got := FieldOf(wrapped); got != "documentIds" {
		t.Errorf("FieldOf = %q", got)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error should be unknown")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("x", "bad"), http.StatusBadRequest},
		{NotFound("quiz", "q1"), http.StatusNotFound},
		{Extraction(errors.New("bad pdf")), http.StatusInternalServerError},
		{Parse(errors.New("bad json")), http.StatusBadGateway},
		{Upstream("embed", errors.New("503")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestUpstream_unwraps(t *testing.T) {
	sentinel := errors.New("connection refused")
	err := Upstream("search", sentinel)
	if !errors.Is(err, sentinel) {
		t.Error("Upstream should keep the cause in the chain")
	}
	if err.Error() != "search: connection refused" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestValidationErr_keepsSentinel(t *testing.T) {
	sentinel := errors.New("no context")
	err := ValidationErr("documentScope", sentinel)
	if !errors.Is(err, sentinel) || !Is(err, KindValidation) {
		t.Errorf("unexpected: %v", err)
	}
}
