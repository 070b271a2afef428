package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/runsheetapp/runsheet/internal/metrics"
	"github.com/runsheetapp/runsheet/internal/mutation"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Retry bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[ERROR] encoding response: %v", err)
	}
}

// writeMutationError maps the failure class to the wire status taxonomy:
// 404 not found, 400 validation, 503 transient (retryable), 500 otherwise.
func writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: "internal error"}
	status := http.StatusInternalServerError

	switch mutation.ClassOf(err) {
	case mutation.ClassNotFound:
		status = http.StatusNotFound
		body.Error = "not found"
	case mutation.ClassValidation:
		status = http.StatusBadRequest
		body.Error = "validation failed"
		var me *mutation.Error
		if errors.As(err, &me) {
			if me.Msg != "" {
				body.Error = me.Msg
			}
			body.Field = me.Field
		}
	case mutation.ClassTransient:
		status = http.StatusServiceUnavailable
		body.Error = "temporarily unavailable"
		body.Retry = true
	}

	if status == http.StatusInternalServerError {
		if reqID := metrics.RequestIDFromContext(r.Context()); reqID != "" {
			log.Printf("[ERROR] request %s: %v", reqID, err)
		} else {
			log.Printf("[ERROR] %v", err)
		}
	}

	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
