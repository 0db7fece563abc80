package media

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // registers webp with image.Decode
)

// ambiguousTypes are declared content types that say nothing useful; the
// bytes are sniffed instead.
var ambiguousTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/binary":       true,
}

// Detected is the validated type information of an image.
type Detected struct {
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// detect picks the content type, maps it to a storage extension, and checks
// that the bytes actually decode as an image. A declared non-image type is
// rejected outright. Sniffed bytes win over the declared header when both
// name an image type; an ambiguous header defers to the bytes entirely.
func detect(data []byte, declared string) (Detected, error) {
	declared = baseType(declared)
	if !ambiguousTypes[declared] && !strings.HasPrefix(declared, "image/") {
		return Detected{}, fmt.Errorf("declared content type %q is not an image", declared)
	}

	sniffed := baseType(mimetype.Detect(data).String())

	contentType := normalizeType(declared)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		contentType = normalizeType(sniffed)
	case ambiguousTypes[declared]:
		contentType = sniffed
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Detected{}, fmt.Errorf("unusable content type %q", contentType)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Detected{}, fmt.Errorf("decode image (%s): %w", contentType, err)
	}
	bounds := img.Bounds()

	return Detected{
		ContentType: contentType,
		Extension:   extensionFor(contentType),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// baseType drops media type parameters.
func baseType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func normalizeType(ct string) string {
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}

// extensionFor maps PNG to .png and everything else to .jpg, the format the
// generators emit by default.
func extensionFor(contentType string) string {
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}
