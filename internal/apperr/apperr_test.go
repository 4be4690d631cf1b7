package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestHTTPStatus_Mapping tests the taxonomy to status code mapping
func TestHTTPStatus_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Validationf("name is required"), http.StatusBadRequest},
		{NotFoundf("room %s", "room_1"), http.StatusNotFound},
		{Internal(errors.New("disk full")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

// TestHTTPMessage_NoLeak tests that internal detail never reaches clients
func TestHTTPMessage_NoLeak(t *testing.T) {
	err := Internal(errors.New("dial tcp 10.0.0.1: connection refused"))
	if msg := HTTPMessage(err); msg != "internal error" {
		t.Errorf("HTTPMessage leaked internal detail: %q", msg)
	}

	verr := Validationf("title is required")
	if msg := HTTPMessage(verr); msg == "internal error" {
		t.Errorf("validation message should be preserved, got %q", msg)
	}
}

// TestSentinels_SurviveWrapping tests errors.Is through extra wrapping
func TestSentinels_SurviveWrapping(t *testing.T) {
	err := fmt.Errorf("creating room: %w", Validationf("name is required"))
	if !errors.Is(err, ErrValidation) {
		t.Error("wrapped validation error lost its classification")
	}

	err = fmt.Errorf("fetching tasks: %w", Connectivity(errors.New("timeout")))
	if !errors.Is(err, ErrConnectivity) {
		t.Error("wrapped connectivity error lost its classification")
	}
}
