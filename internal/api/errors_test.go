package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/eventloop"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(http.StatusBadRequest, ErrCodeInvalidSelection, "Invalid selection")

	if resp.Error != "Bad Request" {
		t.Errorf("Expected Error 'Bad Request', got '%s'", resp.Error)
	}
	if resp.Message != "Invalid selection" {
		t.Errorf("Expected Message 'Invalid selection', got '%s'", resp.Message)
	}
	if resp.Code != ErrCodeInvalidSelection {
		t.Errorf("Expected Code ErrCodeInvalidSelection, got '%s'", resp.Code)
	}
}

func TestErrorResponse_WithFieldsAndRequestID(t *testing.T) {
	fields := map[string]string{
		"count":   "Count must be positive",
		"minutes": "Minutes must be positive",
	}

	resp := NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, "Validation failed").
		WithFields(fields).
		WithRequestID("req-123")

	if len(resp.Fields) != 2 {
		t.Errorf("Expected 2 fields, got %d", len(resp.Fields))
	}
	if resp.RequestID != "req-123" {
		t.Errorf("Expected RequestID 'req-123', got '%s'", resp.RequestID)
	}
}

func TestValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/v1/threshold", nil)

	ValidationError(w, r, "Validation failed", map[string]string{"count": "Count must be positive"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Code != ErrCodeValidation {
		t.Errorf("Expected Code ErrCodeValidation, got '%s'", resp.Code)
	}
	if resp.Fields["count"] != "Count must be positive" {
		t.Errorf("Expected field 'count' error, got '%s'", resp.Fields["count"])
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{fmt.Errorf("x: %w", syncctl.ErrUnknownFeature), http.StatusNotFound, ErrCodeUnknownFeature},
		{syncctl.ErrUnknownDomain, http.StatusNotFound, ErrCodeUnknownDomain},
		{capability.ErrUnknownRequest, http.StatusNotFound, ErrCodeUnknownRequest},
		{fmt.Errorf("service: %w", syncctl.ErrRequestInFlight), http.StatusConflict, ErrCodeRequestInFlight},
		{syncctl.ErrInactive, http.StatusConflict, ErrCodeInactive},
		{bitmask.ErrStrayBits, http.StatusBadRequest, ErrCodeInvalidSelection},
		{bitmask.ErrUnknownFlag, http.StatusBadRequest, ErrCodeInvalidSelection},
		{threshold.ErrInvalidDraft, http.StatusBadRequest, ErrCodeInvalidThreshold},
		{eventloop.ErrStopped, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{fmt.Errorf("disk full"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/v1/features/service", nil)

			writeDomainError(w, r, tt.err)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Code != tt.code {
				t.Errorf("Expected Code %s, got %s", tt.code, resp.Code)
			}
		})
	}
}
