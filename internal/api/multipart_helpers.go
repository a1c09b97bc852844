package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"clipstream/internal/assets"
)

type uploadedMedia struct {
	tempPath     string
	size         int64
	originalName string
	contentType  string
}

func (m *uploadedMedia) source() assets.FileSource {
	return assets.FileSource{
		Path:         m.tempPath,
		ContentType:  m.contentType,
		OriginalName: m.originalName,
	}
}

// multipartForm holds the parsed pieces of a streamed multipart request.
// Callers must invoke cleanup to drop the temp files once the assets are
// uploaded (or the request failed).
type multipartForm struct {
	fields map[string]string
	files  map[string]*uploadedMedia
}

func (f *multipartForm) field(name string) string {
	return strings.TrimSpace(f.fields[name])
}

func (f *multipartForm) file(name string) *uploadedMedia {
	return f.files[name]
}

func (f *multipartForm) cleanup() {
	for _, media := range f.files {
		_ = os.Remove(media.tempPath)
	}
}

// parseMultipartForm streams the request body, spooling file parts named in
// fileFields to temp files and collecting everything else as string fields.
func (h *Handler) parseMultipartForm(r *http.Request, fileFields ...string) (*multipartForm, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart payload")
	}

	allowed := make(map[string]bool, len(fileFields))
	for _, name := range fileFields {
		allowed[name] = true
	}

	form := &multipartForm{
		fields: make(map[string]string),
		files:  make(map[string]*uploadedMedia),
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			form.cleanup()
			return nil, fmt.Errorf("read multipart data: %w", err)
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if allowed[name] && part.FileName() != "" {
			if form.files[name] != nil {
				_ = part.Close()
				continue
			}
			media, saveErr := h.saveMultipartFile(part)
			if saveErr != nil {
				form.cleanup()
				return nil, saveErr
			}
			form.files[name] = media
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			form.cleanup()
			return nil, fmt.Errorf("read form field: %w", readErr)
		}
		form.fields[name] = strings.TrimSpace(string(payload))
	}
	return form, nil
}

func (h *Handler) saveMultipartFile(part *multipart.Part) (*uploadedMedia, error) {
	defer part.Close()
	dir := h.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "pending-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()
	written, err := io.Copy(tmp, part)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return &uploadedMedia{
		tempPath:     tmp.Name(),
		size:         written,
		originalName: part.FileName(),
		contentType:  part.Header.Get("Content-Type"),
	}, nil
}
