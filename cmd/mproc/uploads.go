package main

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mproc/internal/tasks"
)

const sniffLength = 512

// uploadFiles keeps the files behind a set of uploads open until the
// repository has consumed them.
type uploadFiles struct {
	files []*os.File
}

func (u *uploadFiles) open(path, mediaType string) (tasks.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return tasks.Upload{}, err
	}
	u.files = append(u.files, f)

	info, err := f.Stat()
	if err != nil {
		return tasks.Upload{}, err
	}
	if info.IsDir() {
		return tasks.Upload{}, errors.New(path + " is a directory")
	}

	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType, err = detectMediaType(f)
		if err != nil {
			return tasks.Upload{}, err
		}
	}
	return tasks.Upload{Name: filepath.Base(path), Type: mediaType, Body: f}, nil
}

func (u *uploadFiles) openAll(paths []string) ([]tasks.Upload, error) {
	uploads := make([]tasks.Upload, 0, len(paths))
	for _, path := range paths {
		up, err := u.open(path, "")
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func (u *uploadFiles) Close() {
	for _, f := range u.files {
		_ = f.Close()
	}
	u.files = nil
}

// detectMediaType prefers the file extension and falls back to sniffing.
func detectMediaType(f *os.File) (string, error) {
	if byExt := mime.TypeByExtension(filepath.Ext(f.Name())); byExt != "" {
		return byExt, nil
	}
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
