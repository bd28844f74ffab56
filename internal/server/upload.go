package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"pagegen/internal/logging"
)

const maxFormValue = 1 << 20

// upload is a component tree received as multipart "files" parts, written
// under a temporary directory with the client's relative paths.
type upload struct {
	Dir         string
	PageRequest string
	Files       int
}

// Cleanup removes the temporary directory.
func (u *upload) Cleanup() {
	if u.Dir == "" {
		return
	}
	if err := os.RemoveAll(u.Dir); err != nil {
		logging.Get(logging.CategoryServer).Warnw("failed to remove upload dir", "dir", u.Dir, "error", err)
	}
}

// receiveUpload streams the multipart body to disk. Directory uploads send
// paths such as "src/app/common/button/button.component.ts" as the part
// filename; multipart.Part.FileName drops the directories, so the raw
// Content-Disposition value is used instead.
func receiveUpload(r *http.Request) (*upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest(fmt.Sprintf("Invalid multipart body: %v", err))
	}

	dir, err := os.MkdirTemp("", "angular_components_")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	u := &upload{Dir: dir}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return u, nil
		}
		if err != nil {
			u.Cleanup()
			return nil, uploadError(err)
		}

		switch part.FormName() {
		case "pageRequest":
			data, err := io.ReadAll(io.LimitReader(part, maxFormValue))
			if err != nil {
				u.Cleanup()
				return nil, uploadError(err)
			}
			u.PageRequest = string(data)
		case "files":
			if err := u.save(part, rawFilename(part.Header.Get("Content-Disposition"))); err != nil {
				u.Cleanup()
				return nil, err
			}
		}
		part.Close()
	}
}

func (u *upload) save(src io.Reader, name string) error {
	rel, ok := cleanRelPath(name)
	if !ok {
		logging.Get(logging.CategoryServer).Warnw("skipping upload with unsafe path", "filename", name)
		return nil
	}

	dst := filepath.Join(u.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to write upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return uploadError(err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write upload: %w", err)
	}
	u.Files++
	return nil
}

func rawFilename(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// cleanRelPath turns a client path into a local relative path, rejecting
// absolute paths and anything escaping the upload root.
func cleanRelPath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" {
		return "", false
	}
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.Clean(rel), true
}

func uploadError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return badRequest(fmt.Sprintf("Invalid multipart body: %v", err))
}
