package security

import (
	"bytes"
	"errors"
	"testing"
)

func pngBytes() []byte {
	return append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("rest-of-file")...)
}

func webpBytes() []byte {
	data := append([]byte("RIFF"), 0x24, 0x00, 0x00, 0x00)
	return append(data, []byte("WEBPVP8 ")...)
}

func TestValidateImage_AcceptsGenuineFormats(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		data     []byte
	}{
		{"PNG", "logo.png", "image/png", pngBytes()},
		{"JPEG", "logo.jpg", "image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}},
		{"GIF 89a", "logo.gif", "image/gif", []byte("GIF89a...")},
		{"GIF 87a", "logo.gif", "image/gif", []byte("GIF87a...")},
		{"WebP", "logo.webp", "image/webp", webpBytes()},
		{"MIME case-insensitive", "logo.png", "IMAGE/PNG", pngBytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateImage(tt.filename, tt.mime, tt.data); err != nil {
				t.Errorf("ValidateImage() = %v, want nil", err)
			}
		})
	}
}

func TestValidateImage_RejectsMismatchedSignature(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		data     []byte
	}{
		{"PNG header on JPEG claim", "logo.jpg", "image/jpeg", pngBytes()},
		{"Script claiming PNG", "logo.png", "image/png", []byte("#!/bin/sh\nrm -rf /")},
		{"Truncated header", "logo.png", "image/png", []byte{0x89, 0x50}},
		{"RIFF without WEBP marker", "logo.webp", "image/webp", append([]byte("RIFF"), []byte("1234WAVE")...)},
		{"Empty payload", "logo.png", "image/png", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateImage(tt.filename, tt.mime, tt.data); !errors.Is(err, ErrImageSignature) {
				t.Errorf("ValidateImage() = %v, want ErrImageSignature", err)
			}
		})
	}
}

func TestValidateImage_RejectsDisallowedType(t *testing.T) {
	err := ValidateImage("logo.svg", "image/svg+xml", []byte("<svg/>"))
	if !errors.Is(err, ErrImageTypeNotAllowed) {
		t.Errorf("ValidateImage() = %v, want ErrImageTypeNotAllowed", err)
	}
}

func TestValidateImage_RejectsOversize(t *testing.T) {
	data := append(pngBytes(), bytes.Repeat([]byte{0}, MaxImageSize)...)
	if err := ValidateImage("logo.png", "image/png", data); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("ValidateImage() = %v, want ErrImageTooLarge", err)
	}
}

func TestValidateImage_RejectsExecutableFilenames(t *testing.T) {
	tests := []string{
		"virus.exe",
		"logo.png.exe",
		"logo.exe.png",
		"setup.MSI",
		"script.sh",
		"payload.php.jpg",
	}

	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			if err := ValidateImage(filename, "image/png", pngBytes()); !errors.Is(err, ErrExecutableFilename) {
				t.Errorf("ValidateImage(%q) = %v, want ErrExecutableFilename", filename, err)
			}
		})
	}
}
