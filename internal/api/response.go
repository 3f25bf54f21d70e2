// Package api provides HTTP response utilities for MindScreen.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal the response to JSON first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		// Use pre-marshaled fallback response - if this fails, we have bigger problems
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	// Write headers and response only after successful JSON marshaling
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuestionReference),
		errors.Is(err, flow.ErrInvalidAnswerValue),
		errors.Is(err, flow.ErrNotCurrentQuestion),
		errors.Is(err, flow.ErrQuestionNotPresented),
		errors.Is(err, models.ErrEmptyUserID),
		errors.Is(err, models.ErrEmptyMessages),
		errors.Is(err, models.ErrInvalidRole),
		errors.Is(err, models.ErrEmptyQuestionReference),
		errors.Is(err, models.ErrAmbiguousAnswerValue):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrRunCompleted),
		errors.Is(err, models.ErrIncompleteRun),
		errors.Is(err, flow.ErrBankVersionMismatch):
		return http.StatusConflict
	case errors.Is(err, models.ErrCollaboratorFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as an error envelope. Internal errors get a generic message.
func writeError(w http.ResponseWriter, where string, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error(where+": internal error", "error", err)
		msg = "Internal server error"
	} else {
		slog.Warn(where+": request rejected", "error", err, "status", status)
	}
	writeJSONResponse(w, status, models.Error(msg))
}
