package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// LogoNone is the sentinel value for records without a logo.
const LogoNone = "none"

// Record is the persisted description of one generated QR code.
type Record struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OriginalText string     `json:"originalText"`
	LogoPath     string     `json:"logoPath,omitempty"`
	ScanCount    int64      `json:"scanCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastScanned  *time.Time `json:"lastScanned,omitempty"`
}

// ScanLog records one access through the redirect endpoint.
type ScanLog struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordID"`
	ScannedAt time.Time `json:"scannedAt"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Referer   string    `json:"referer,omitempty"`
	IsBot     bool      `json:"isBot"`
}

// FallbackPayload is the content mirrored into the shareable link itself
// (the data= query parameter) so redirection still works when every
// storage tier is unreachable at scan time.
type FallbackPayload struct {
	Text    string    `json:"text"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

var ErrEmptyPayload = errors.New("embedded payload is empty")

// EncodePayload packs the payload as URL-safe base64(JSON) for the data=
// link parameter.
func EncodePayload(p FallbackPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DecodePayload reverses EncodePayload. It tolerates standard base64 too,
// since older links were generated with the standard alphabet.
func DecodePayload(encoded string) (*FallbackPayload, error) {
	if encoded == "" {
		return nil, ErrEmptyPayload
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
	}
	var p FallbackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, ErrEmptyPayload
	}
	return &p, nil
}

// ToRecord rebuilds a minimal Record from an embedded payload. ScanCount
// defaults to 0; the payload carries no scan history.
func (p *FallbackPayload) ToRecord(id string) *Record {
	name := p.Name
	if name == "" {
		name = "Recovered QR Code"
	}
	return &Record{
		ID:           id,
		Name:         name,
		OriginalText: p.Text,
		LogoPath:     LogoNone,
		ScanCount:    0,
		CreatedAt:    p.Created,
	}
}
