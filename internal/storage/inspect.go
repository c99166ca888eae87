package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrNotImage = errors.New("payload is not a supported image")

// ImageExt returns the lowercased extension of an uploaded file name when it is
// an image format the platform accepts.
func ImageExt(original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))

	if ext == "" {
		return "", fmt.Errorf("%w: missing extension", ErrNotImage)
	}

	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotImage, ext)
	}

	return ext, nil
}

// InspectImage decodes payload fully so truncated or disguised uploads are refused.
func InspectImage(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	_, err := imaging.Decode(bytes.NewReader(payload))

	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	return nil
}
