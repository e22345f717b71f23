package tasks

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("task not found")
	ErrTitleRequired      = errors.New("title is required")
	ErrInvalidDue         = errors.New("invalid due date")
	ErrInvalidSort        = errors.New("invalid sort mode")
	ErrInvalidTheme       = errors.New("invalid theme")
	ErrInvalidSetting     = errors.New("invalid setting")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrImportNeedsConfirm = errors.New("import would overwrite existing tasks")
	ErrUploadTooLarge     = errors.New("upload exceeds size limit")
	ErrMediaTypeRejected  = errors.New("media type not allowed")
	ErrStoreUnavailable   = errors.New("metadata store could not be read")
)

// PersistError reports that a mutation was applied in memory but could not be
// written to the metadata store. The next successful write includes it.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// ImportError reports why an import document was rejected. Index is the
// zero-based position of the offending task, or -1 for document-level errors.
type ImportError struct {
	Index int
	Err   error
}

func (e *ImportError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("import: %v", e.Err)
	}
	return fmt.Sprintf("import task %d: %v", e.Index, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
