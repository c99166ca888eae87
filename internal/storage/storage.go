package storage

import (
	"errors"
	"regexp"
	"strings"
)

// Area is a top-level folder under the upload root.
type Area string

const (
	AreaProfiles Area = "profiles"
	AreaGallery  Area = "gallery"
)

func (a Area) IsValid() bool {
	switch a {
	case AreaProfiles, AreaGallery:
		return true
	default:
		return false
	}
}

var (
	ErrUnsafeName   = errors.New("unsafe file name")
	ErrInvalidArea  = errors.New("invalid storage area")
	ErrExists       = errors.New("file already exists")
	ErrNotFound     = errors.New("file not found")
	ErrEmptyPayload = errors.New("empty payload")
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,200}$`)

// ValidateName rejects anything that could leave its area directory.
// Names are never rewritten into a safe form.
func ValidateName(name string) error {
	if !safeName.MatchString(name) || strings.Contains(name, "..") {
		return ErrUnsafeName
	}

	return nil
}
