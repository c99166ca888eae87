package profile

import (
	"strings"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
)

// Caller is the authenticated actor. Its role is read, never changed.
type Caller struct {
	ID   int64
	Role user.Role
}

type Upload struct {
	Filename string
	Data     []byte
}

type SecretChange struct {
	Current string
	New     string
}

func (s *SecretChange) requested() bool {
	return s != nil && s.Current != "" && s.New != ""
}

type Request struct {
	Caller Caller
	Core   user.CoreFields

	Secret *SecretChange
	Photo  *Upload

	// Artisan is nil when no specialization field was submitted.
	Artisan *artisan.Fields
	Gallery []Upload
}

// validate runs before any side effect; a failure here is terminal.
func (r Request) validate(maxImages int) *StepError {
	if strings.TrimSpace(r.Core.Name) == "" {
		return &StepError{Step: StepCoreFields, Kind: KindValidation, Err: ErrNameRequired}
	}

	if len(r.Gallery) > maxImages {
		return &StepError{Step: StepGalleryImage, Kind: KindValidation, Err: ErrTooManyImages}
	}

	if r.Artisan != nil {
		if r.Artisan.Experience != nil && *r.Artisan.Experience < 0 {
			return &StepError{Step: StepArtisanUpsert, Kind: KindValidation, Err: ErrInvalidExperience}
		}

		if r.Artisan.HourlyRate != nil && *r.Artisan.HourlyRate < 0 {
			return &StepError{Step: StepArtisanUpsert, Kind: KindValidation, Err: ErrInvalidRate}
		}
	}

	return nil
}
