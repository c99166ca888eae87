package handlers

import "github.com/tnm3allim/marketplace/internal/storage"

const UploadsPrefix = "/uploads"

func assetURL(area storage.Area, ref string) string {
	return UploadsPrefix + "/" + string(area) + "/" + ref
}

func photoURL(ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}

	u := assetURL(storage.AreaProfiles, *ref)

	return &u
}
