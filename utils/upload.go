package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the per-file upload cap.
const MaxImageSize = 5 << 20 // 5 MiB

// allowedImageTypes maps accepted content types to the stored file extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ValidateImage checks the declared content type and byte size of one
// uploaded file. Error messages name the offending file so they can be
// surfaced as field-level form errors.
func ValidateImage(fh *multipart.FileHeader) error {
	ct := declaredContentType(fh)
	if _, ok := allowedImageTypes[ct]; !ok {
		return fmt.Errorf("%s: tipo de imagen no permitido (%s)", fh.Filename, ct)
	}
	if fh.Size > MaxImageSize {
		return fmt.Errorf("%s: la imagen supera el límite de 5 MiB", fh.Filename)
	}
	return nil
}

// SaveImage buffers the upload fully, re-checks the size cap and writes the
// file under <mediaDir>/<prefix>/ with a random name. It returns the public
// URL path served by the /media static route.
func SaveImage(fh *multipart.FileHeader, mediaDir, prefix string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%s: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("%s: %w", fh.Filename, err)
	}
	if int64(len(data)) > MaxImageSize {
		return "", fmt.Errorf("%s: la imagen supera el límite de 5 MiB", fh.Filename)
	}

	name := uuid.NewString() + extensionFor(fh)
	dir := filepath.Join(mediaDir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return "/media/" + prefix + "/" + name, nil
}

// RemoveImage deletes a stored file given its public URL path. Best effort;
// a missing file is not an error.
func RemoveImage(urlPath, mediaDir string) {
	rel, ok := strings.CutPrefix(urlPath, "/media/")
	if !ok {
		return
	}
	_ = os.Remove(filepath.Join(mediaDir, filepath.FromSlash(rel)))
}

func declaredContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func extensionFor(fh *multipart.FileHeader) string {
	if ext, ok := allowedImageTypes[declaredContentType(fh)]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(fh.Filename))
}
