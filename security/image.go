package security

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxImageSize is the logo upload ceiling (2MB).
const MaxImageSize = 2 << 20

var (
	ErrImageTooLarge       = errors.New("image exceeds 2MB size limit")
	ErrImageTypeNotAllowed = errors.New("image type not allowed")
	ErrImageSignature      = errors.New("image content does not match its declared type")
	ErrExecutableFilename  = errors.New("filename carries an executable extension")
)

// magicNumbers holds the leading-byte signatures per accepted MIME type.
// The declared MIME type alone is never trusted.
var magicNumbers = map[string][][]byte{
	"image/png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	"image/jpeg": {{0xFF, 0xD8, 0xFF}},
	"image/gif":  {[]byte("GIF87a"), []byte("GIF89a")},
	"image/webp": {[]byte("RIFF")}, // bytes 8-11 additionally checked below
}

var executableExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".scr", ".msi",
	".sh", ".bash", ".php", ".js", ".jar", ".py", ".pl", ".rb",
}

// ValidateImage checks a logo upload: the MIME type must be on the
// allow-list, the payload must fit under the size ceiling, the first
// bytes must match the magic-number signature of the declared format, and
// the filename must not smuggle an executable extension.
func ValidateImage(filename, declaredMIME string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, bad := range executableExtensions {
		if ext == bad {
			return ErrExecutableFilename
		}
	}
	// Double extensions like logo.png.exe are caught above; logo.exe.png
	// is caught here.
	lowerName := strings.ToLower(filename)
	for _, bad := range executableExtensions {
		if strings.Contains(lowerName, bad+".") {
			return ErrExecutableFilename
		}
	}

	if len(data) > MaxImageSize {
		return ErrImageTooLarge
	}

	signatures, ok := magicNumbers[strings.ToLower(declaredMIME)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrImageTypeNotAllowed, declaredMIME)
	}

	matched := false
	for _, sig := range signatures {
		if len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig) {
			matched = true
			break
		}
	}
	if matched && strings.EqualFold(declaredMIME, "image/webp") {
		matched = len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP"))
	}
	if !matched {
		return ErrImageSignature
	}

	return nil
}
