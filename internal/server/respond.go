package server

import (
	"net/http"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/logger"
	"go.uber.org/zap"
)

// envelope is the wire shape of every JSON response
type envelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respond writes a success envelope with optional payload
func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.EncodeTo(w, envelope{Success: true, Data: data}); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondMessage writes a success envelope carrying only a message
func respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.EncodeTo(w, envelope{Success: true, Message: message}); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondError maps a structured error to its HTTP status and writes a
// failure envelope
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.TypeOf(err) {
	case errors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrorTypeInvalidArgument, errors.ErrorTypeDecode:
		status = http.StatusBadRequest
	case errors.ErrorTypeUnauthorized:
		status = http.StatusUnauthorized
	case errors.ErrorTypeConflict:
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.EncodeTo(w, envelope{Success: false, Error: err.Error()}); encodeErr != nil {
		logger.Error("failed to encode error response", zap.Error(encodeErr))
	}
}
