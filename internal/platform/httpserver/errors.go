package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nereus-labs/nautilus-go/internal/domain"
)

// ErrorBody is the JSON body of every failed request. Engine, Cause and
// Diagnostics are set only when an interpreter was involved.
type ErrorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	RequestID   string `json:"request_id"`
	Engine      string `json:"engine,omitempty"`
	Cause       string `json:"cause,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidRequest, domain.KindInvalidJSON, domain.KindMissingCodeField:
		return http.StatusBadRequest
	case domain.KindInvalidEncoding:
		return http.StatusUnprocessableEntity
	case domain.KindProgramNotFound:
		return http.StatusNotFound
	case domain.KindProgramExists:
		return http.StatusConflict
	case domain.KindUpstreamFetch:
		return http.StatusBadGateway
	case domain.KindExecutionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeBody(w, status, ErrorBody{
		Error:     code,
		Message:   strings.TrimSpace(message),
		RequestID: RequestID(r),
	})
}

// WriteDomainError answers with the status for err's kind. Errors that are
// not *domain.Error are logged and hidden behind internal_error.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logger.Error("request failed", "request_id", RequestID(r), "path", r.URL.Path, "error", err)
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	body := ErrorBody{
		Error:       string(de.Kind),
		Message:     de.Message,
		RequestID:   RequestID(r),
		Engine:      string(de.Engine),
		Cause:       de.Cause,
		Diagnostics: de.Diagnostics,
	}
	if de.Kind == domain.KindUpstreamFetch && de.Err != nil {
		body.Message = de.Message + ": " + de.Err.Error()
	}
	writeBody(w, StatusForKind(de.Kind), body)
}

func writeBody(w http.ResponseWriter, status int, body ErrorBody) {
	noteError(w, body.Error, body.Engine)
	WriteJSON(w, status, body)
}
