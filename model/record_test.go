package model

import (
	"testing"
	"time"
)

func TestPayloadRoundTrip(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := FallbackPayload{
		Text:    "https://example.org",
		Name:    "Demo",
		Created: created,
	}

	encoded, err := EncodePayload(payload)
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}

	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}

	if decoded.Text != payload.Text {
		t.Errorf("Text = %q, want %q", decoded.Text, payload.Text)
	}
	if decoded.Name != payload.Name {
		t.Errorf("Name = %q, want %q", decoded.Name, payload.Name)
	}
	if !decoded.Created.Equal(created) {
		t.Errorf("Created = %v, want %v", decoded.Created, created)
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"Empty", ""},
		{"Not base64", "!!!not-base64!!!"},
		{"Base64 but not JSON", "bm90IGpzb24"},
		{"JSON without text", "e30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePayload(tt.encoded); err == nil {
				t.Errorf("DecodePayload(%q) expected error", tt.encoded)
			}
		})
	}
}

func TestPayloadToRecord(t *testing.T) {
	payload := &FallbackPayload{Text: "hello world", Created: time.Now()}
	rec := payload.ToRecord("abc12345")

	if rec.ID != "abc12345" {
		t.Errorf("ID = %q, want abc12345", rec.ID)
	}
	if rec.ScanCount != 0 {
		t.Errorf("ScanCount = %d, want 0", rec.ScanCount)
	}
	if rec.Name == "" {
		t.Error("missing payload name should fall back to a placeholder")
	}
	if rec.LogoPath != LogoNone {
		t.Errorf("LogoPath = %q, want %q", rec.LogoPath, LogoNone)
	}
}
