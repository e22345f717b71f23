package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"mproc/internal/tasks"
)

const (
	defaultUploadMaxBody      = 100 << 20 // 100 MiB
	attachmentMultipartMemory = 8 << 20   // 8 MiB
	sniffLength               = 512
)

var attachmentFieldNames = []string{"attachments", "attachment", "files"}

func (s *Server) handleAddAttachments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	form, err := s.parseUploadForm(w, r)
	if err != nil {
		s.writeErrorReq(w, r, httpStatusFromError(err), err)
		return
	}
	files, err := openFormUploads(form)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	defer files.Close()
	if len(files.attachments) == 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("attachments are required"), ErrCodeMissingRequired))
		return
	}

	task, err := s.repo.Update(r.Context(), id, tasks.TaskPatch{Attachments: files.attachments})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}
	blobID, ok := s.pathIDOrBadRequest(w, r, "blob_id")
	if !ok {
		return
	}

	task, err := s.repo.RemoveAttachment(r.Context(), id, blobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleSetIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	form, err := s.parseUploadForm(w, r)
	if err != nil {
		s.writeErrorReq(w, r, httpStatusFromError(err), err)
		return
	}
	files, err := openFormUploads(form)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	defer files.Close()
	if files.icon == nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("icon is required"), ErrCodeMissingRequired))
		return
	}

	task, err := s.repo.Update(r.Context(), id, tasks.TaskPatch{Icon: files.icon})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleClearIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	task, err := s.repo.Update(r.Context(), id, tasks.TaskPatch{ClearIcon: true})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

// handleGetBlob serves stored bytes. download=true asks the browser to save
// the file instead of displaying it.
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	blobID, ok := s.pathIDOrBadRequest(w, r, "blob_id")
	if !ok {
		return
	}
	download, err := queryBool(r, "download")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	rec, err := s.repo.Blob(r.Context(), blobID)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
		return
	}
	if rec == nil {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("blob not found"), ErrCodeBlobNotFound))
		return
	}

	mediaType := rec.Type
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	if header := mime.FormatMediaType(disposition, map[string]string{"filename": rec.Name}); header != "" {
		w.Header().Set("Content-Disposition", header)
	} else {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")

	http.ServeContent(w, r, rec.Name, rec.CreatedAt, bytes.NewReader(rec.Payload))
}

func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	if !isMultipart(r) {
		return nil, badRequestCode(fmt.Errorf("expected multipart/form-data"), ErrCodeInvalidMultipart)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(attachmentMultipartMemory); err != nil {
		return nil, classifyMultipartError(err)
	}
	return r.MultipartForm, nil
}

// formUploads holds the opened files of a multipart form.
type formUploads struct {
	icon        *tasks.Upload
	attachments []tasks.Upload
	closers     []io.Closer
}

func (f *formUploads) Close() {
	for _, c := range f.closers {
		_ = c.Close()
	}
}

func openFormUploads(form *multipart.Form) (*formUploads, error) {
	out := &formUploads{}
	if form == nil || form.File == nil {
		return out, nil
	}

	if headers := form.File["icon"]; len(headers) > 0 {
		if len(headers) > 1 {
			return nil, badRequestCode(fmt.Errorf("only one icon may be uploaded"), ErrCodeInvalidMultipart)
		}
		up, err := out.open(headers[0])
		if err != nil {
			out.Close()
			return nil, err
		}
		out.icon = &up
	}

	for _, key := range attachmentFieldNames {
		for _, header := range form.File[key] {
			up, err := out.open(header)
			if err != nil {
				out.Close()
				return nil, err
			}
			out.attachments = append(out.attachments, up)
		}
	}
	return out, nil
}

func (f *formUploads) open(header *multipart.FileHeader) (tasks.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return tasks.Upload{}, badRequestCode(fmt.Errorf("open %s: %w", header.Filename, err), ErrCodeInvalidMultipart)
	}
	f.closers = append(f.closers, file)

	body := bufio.NewReaderSize(file, sniffLength)
	mediaType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mediaType == "" {
		peek, _ := body.Peek(sniffLength)
		mediaType = http.DetectContentType(peek)
	}

	return tasks.Upload{Name: header.Filename, Type: mediaType, Body: body}, nil
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return tooLarge(fmt.Errorf("request body too large"))
	}
	return badRequestCode(err, ErrCodeInvalidMultipart)
}
