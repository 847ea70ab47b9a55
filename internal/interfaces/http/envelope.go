package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// successEnvelope wraps every 2xx API response.
type successEnvelope struct {
	Data      interface{}            `json:"data"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// errorBody is the inner error object of an error envelope.
type errorBody struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Code       string      `json:"code"`
	Details    interface{} `json:"details,omitempty"`
}

// errorEnvelope wraps every non-2xx API response.
type errorEnvelope struct {
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, data interface{}, message string) {
	meta := map[string]interface{}{}
	if requestID, ok := r.Context().Value(requestIDKey).(string); ok {
		meta["request_id"] = requestID
	}
	writeJSON(w, http.StatusOK, successEnvelope{
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Meta:      meta,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, errorEnvelope{
		Error: errorBody{
			Message:    message,
			StatusCode: status,
			Code:       code,
			Details:    details,
		},
		Timestamp: time.Now().UTC(),
	})
}
