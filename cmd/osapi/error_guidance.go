package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"osapi/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			lines = append(lines, "hint: run `osapi login` and export the printed token as OSAPI_API_TOKEN.")
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			// Only non-osapi servers answer without an envelope message.
			if apiErr.Message == "" || strings.HasPrefix(apiErr.Message, "api error:") {
				lines = append(lines, "hint: verify OSAPI_API_URL points to an osapi server.")
			}
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase OSAPI_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an osapi server is running at OSAPI_API_URL.",
			"hint: start local server manually with: osapi srv",
			"hint: you can increase OSAPI_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
