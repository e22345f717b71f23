package main

import (
	"context"
	"errors"
	"net"

	"mproc/internal/api"
	"mproc/internal/tasks"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	switch {
	case errors.Is(err, errServerRunning):
		lines = append(lines,
			"hint: stop the running server, or make the change through its HTTP API.",
			"hint: set MPROC_API_URL if the server belongs to another data directory.",
		)
		return uniqueLines(lines)
	case errors.Is(err, tasks.ErrImportNeedsConfirm):
		lines = append(lines, "hint: rerun with --force to replace the current tasks.")
		return uniqueLines(lines)
	case errors.Is(err, tasks.ErrUploadTooLarge):
		lines = append(lines, "hint: raise the limit with: mproc config set attachments.max_upload_bytes <bytes>")
		return uniqueLines(lines)
	case errors.Is(err, tasks.ErrMediaTypeRejected):
		lines = append(lines, "hint: check attachments.allowed_media_types, or pass --media-type explicitly.")
		return uniqueLines(lines)
	case errors.Is(err, tasks.ErrStoreUnavailable):
		lines = append(lines,
			"hint: the task database could not be read at startup, so changes are not saved.",
			"hint: inspect it with: mproc migrate --inspect",
		)
		return uniqueLines(lines)
	case errors.Is(err, tasks.ErrInvalidSort):
		lines = append(lines, "hint: valid sort modes are manual, dueAsc, dueDesc and title.")
		return uniqueLines(lines)
	}

	var persistErr *tasks.PersistError
	if errors.As(err, &persistErr) {
		lines = append(lines, "hint: the change could not be saved; check that the data directory is writable (MPROC_DATA_DIR).")
		return uniqueLines(lines)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "resource_exhausted" {
			lines = append(lines, "hint: retry shortly; the server limits concurrent imports and exports.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify MPROC_API_URL points to an mproc server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase MPROC_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an mproc server is running at MPROC_API_URL.",
			"hint: start one with: mproc srv",
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
