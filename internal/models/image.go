package models

import (
	"fmt"
	"mime"
	"strings"
)

// Accepted image media types.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeGIF  = "image/gif"
)

// DefaultImageMediaTypes is the upload allow-list used when none is configured.
var DefaultImageMediaTypes = []string{MediaTypeJPEG, MediaTypePNG, MediaTypeGIF}

var imageExtensions = map[string][]string{
	MediaTypeJPEG: {".jpg", ".jpeg"},
	MediaTypePNG:  {".png"},
	MediaTypeGIF:  {".gif"},
}

// NormalizeMediaType lowercases a media type and strips its parameters.
func NormalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("invalid media type: %s", raw)
	}
	return strings.ToLower(parsed), nil
}

// ImageExtension picks the stored file extension for an image. The client
// extension wins when it agrees with the detected media type.
func ImageExtension(mediaType, clientExt string) string {
	exts := imageExtensions[mediaType]
	if len(exts) == 0 {
		if guessed, err := mime.ExtensionsByType(mediaType); err == nil && len(guessed) > 0 {
			return guessed[0]
		}
		return ""
	}
	clientExt = strings.ToLower(strings.TrimSpace(clientExt))
	if clientExt != "" && !strings.HasPrefix(clientExt, ".") {
		clientExt = "." + clientExt
	}
	for _, ext := range exts {
		if ext == clientExt {
			return ext
		}
	}
	return exts[0]
}
