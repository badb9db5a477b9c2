package api

import (
	"fmt"
	"sort"
	"strings"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status  int
	Message string
	Errors  map[string][]string
	Detail  string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("api error: %d", e.Status)
	}
	if len(e.Errors) > 0 {
		fields := make([]string, 0, len(e.Errors))
		for field := range e.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Errors[field], "; ")))
		}
		return msg + " (" + strings.Join(parts, ", ") + ")"
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	return msg
}
