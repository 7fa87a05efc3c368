// ABOUTME: Typed media attachments for vision-capable models
// ABOUTME: Sniffs MIME from magic bytes and pre-validates image payloads

package ai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	// Register decoders so DecodeConfig understands all supported formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// AttachmentKind classifies an attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is a media payload carried on a message. Data holds raw bytes;
// URL is for vendors that accept remote references.
type Attachment struct {
	Kind      AttachmentKind `json:"kind"`
	MediaType string         `json:"mediaType"`
	Name      string         `json:"name,omitempty"`
	Data      []byte         `json:"data,omitempty"`
	URL       string         `json:"url,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
}

// Base64 returns the payload encoded for vendors that inline image data.
func (a Attachment) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// ImageAttachment validates data as a supported image and returns an
// attachment with sniffed media type and decoded dimensions. Undecodable
// data is rejected here, at attach time, rather than surfacing later as a
// confusing vendor 400.
func ImageAttachment(name string, data []byte) (Attachment, error) {
	mime := DetectImageMIME(data)
	if mime == "" {
		return Attachment{}, fmt.Errorf("attachment %s: not a supported image format (png, jpeg, gif, webp)", name)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: decoding image: %w", name, err)
	}
	return Attachment{
		Kind:      AttachmentImage,
		MediaType: mime,
		Name:      name,
		Data:      data,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}

// DetectImageMIME returns the MIME type based on magic bytes, or "" for
// unsupported data.
func DetectImageMIME(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	if data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' {
		return "image/png"
	}
	if data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}
	if data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return "image/gif"
	}
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	return ""
}
