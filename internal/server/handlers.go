package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mproc/internal/api"
	"mproc/internal/tasks"
)

const (
	defaultJSONMaxBody = 1 << 20  // 1 MiB
	importJSONMaxBody  = 64 << 20 // 64 MiB
)

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeErrorReq(w, nil, status, err)
}

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func conflictCode(err error, code int) error {
	return makeAPIError(http.StatusConflict, "conflict", code, err)
}

func tooLarge(err error) error {
	return makeAPIError(http.StatusRequestEntityTooLarge, "request_too_large", ErrCodeRequestTooLarge, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

// repoError maps repository errors onto API errors.
func repoError(err error) error {
	if err == nil {
		return nil
	}
	var existing apiError
	if errors.As(err, &existing) {
		return existing
	}

	var persistErr *tasks.PersistError
	var importErr *tasks.ImportError
	switch {
	case errors.As(err, &persistErr), errors.Is(err, tasks.ErrStoreUnavailable):
		return storeFailure(err)
	case errors.Is(err, tasks.ErrImportNeedsConfirm):
		return conflictCode(fmt.Errorf("%w; retry with confirm=true", err), ErrCodeConfirmRequired)
	case errors.As(err, &importErr):
		return badRequestCode(err, ErrCodeInvalidImport)
	case errors.Is(err, tasks.ErrNotFound):
		return notFoundCode(err, ErrCodeTaskNotFound)
	case errors.Is(err, tasks.ErrAttachmentNotFound):
		return notFoundCode(err, ErrCodeAttachmentNotFound)
	case errors.Is(err, tasks.ErrTitleRequired):
		return badRequestCode(err, ErrCodeMissingRequired)
	case errors.Is(err, tasks.ErrInvalidDue):
		return badRequestCode(err, ErrCodeInvalidDue)
	case errors.Is(err, tasks.ErrInvalidSort):
		return badRequestCode(err, ErrCodeInvalidSort)
	case errors.Is(err, tasks.ErrInvalidTheme):
		return badRequestCode(err, ErrCodeInvalidTheme)
	case errors.Is(err, tasks.ErrInvalidSetting):
		return badRequest(err)
	case errors.Is(err, tasks.ErrMediaTypeRejected):
		return badRequestCode(err, ErrCodeInvalidMediaType)
	case errors.Is(err, tasks.ErrUploadTooLarge):
		return tooLarge(err)
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return tooLarge(fmt.Errorf("request body too large"))
		}
		return internalError(err)
	}
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusRequestEntityTooLarge:
		return true
	default:
		return false
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(defaultJSONMaxBody))
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return tooLarge(fmt.Errorf("request body too large"))
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		apiErr := classifyDecodeJSONError(err)
		s.writeErrorReq(w, r, httpStatusFromError(apiErr), apiErr)
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := repoError(err)
	s.writeErrorReq(w, r, httpStatusFromError(mapped), mapped)
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(key))
	if !validateID(id) {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidID))
		return "", false
	}
	return id, true
}

func queryBool(r *http.Request, key string) (bool, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

// queryOptionalBool returns nil when key is absent.
func queryOptionalBool(r *http.Request, key string) (*bool, error) {
	if strings.TrimSpace(r.URL.Query().Get(key)) == "" {
		return nil, nil
	}
	parsed, err := queryBool(r, key)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
