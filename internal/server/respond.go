package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// stable machine-readable error codes surfaced to clients
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeBadRequest   = "BAD_REQUEST"
	codeNotFound     = "NOT_FOUND"
	codeInternal     = "INTERNAL_SERVER_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(logger *zap.SugaredLogger, w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("marshaling response payload: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

func writeError(logger *zap.SugaredLogger, w http.ResponseWriter, status int, code, message string) {
	writeJSON(logger, w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// internalError logs the backing failure and hides it behind a generic
// INTERNAL_SERVER_ERROR response
func (h *handler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error(err)
	writeError(h.logger, w, http.StatusInternalServerError, codeInternal, "Something went wrong")
}

func (h *handler) badRequest(w http.ResponseWriter, message string) {
	writeError(h.logger, w, http.StatusBadRequest, codeBadRequest, message)
}
