package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidQuery      = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeInvalidDue        = 1005
	ErrCodeInvalidSort       = 1006
	ErrCodeInvalidTheme      = 1007
	ErrCodeInvalidMediaType  = 1008
	ErrCodeMissingRequired   = 1009
	ErrCodeInvalidImport     = 1010
	ErrCodeConfirmRequired   = 1011
	ErrCodeInvalidMultipart = 1012

	// Domain state (2xxx)
	ErrCodeTaskNotFound       = 2001
	ErrCodeAttachmentNotFound = 2003
	ErrCodeBlobNotFound       = 2004
	ErrCodeConflict           = 2102

	// Limits (3xxx)
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeExportFailed = 4003
	ErrCodeImportFailed = 4004
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeTaskNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
