package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"osapi/internal/api"
)

const (
	defaultJSONMaxBody = 1 << 20 // 1 MiB

	msgRetrieved       = "Data retrieved successfully"
	msgCreated         = "Data created successfully"
	msgUpdated         = "Data updated successfully"
	msgDeleted         = "Data deleted successfully"
	msgNotFound        = "Data not found"
	msgValidation      = "Validation error"
	msgRetrieveFailed  = "Failed to retrieve data"
	msgCreateFailed    = "Failed to create data"
	msgUpdateFailed    = "Failed to update data"
	msgDeleteFailed    = "Failed to delete data"
	msgUnauthenticated = "Unauthenticated."
	msgBadCredentials  = "Invalid credentials"
	msgServerError     = "Server Error"
)

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = internalError(msgServerError, nil)
	}

	status := httpStatusFromError(err)
	env := api.Envelope{Success: false, Message: errorMessage(status, err)}

	var apiErr apiError
	if errors.As(err, &apiErr) && len(apiErr.fields) > 0 {
		env.Errors = apiErr.fields
	}

	fields := []any{"status", status, "message", env.Message, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		env.Error = err.Error()
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, env)
}

func (s *Server) writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	s.writeJSON(w, status, api.Envelope{Success: true, Message: message, Data: data})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// apiError carries the response status, envelope message, and per-field
// validation messages alongside the underlying cause.
type apiError struct {
	status  int
	message string
	fields  map[string][]string
	err     error
}

func (e apiError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.message != "" {
		return e.message
	}
	return http.StatusText(e.status)
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, message string, err error) error {
	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}
	return apiError{status: status, message: message, err: err}
}

func validationFailed(fields FieldErrors) error {
	return apiError{status: http.StatusUnprocessableEntity, message: msgValidation, fields: fields}
}

func notFound() error {
	return apiError{status: http.StatusNotFound, message: msgNotFound}
}

func unauthenticated() error {
	return apiError{status: http.StatusUnauthorized, message: msgUnauthenticated}
}

func invalidCredentials() error {
	return apiError{status: http.StatusUnauthorized, message: msgBadCredentials}
}

// integrityFault reports a failure that left records and blobs out of step.
func integrityFault(message string, err error) error {
	return apiError{status: http.StatusInternalServerError, message: message, err: err}
}

func internalError(message string, err error) error {
	return makeAPIError(http.StatusInternalServerError, message, err)
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.status != 0 {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorMessage(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.message != "" {
		return apiErr.message
	}
	if status >= 500 {
		return msgServerError
	}
	return http.StatusText(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// pathID parses the {id} segment. Anything that is not a positive integer
// names no record.
func pathID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryPage follows paginator semantics: missing, malformed, or non-positive
// values select the first page.
func queryPage(r *http.Request) int {
	page, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("page")))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
