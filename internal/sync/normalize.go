package sync

import (
	"fmt"
	"strings"
	"time"

	"listing-portal/internal/models"
	"listing-portal/internal/upstream"
)

// ValidationError marks an upstream record too malformed to store. The
// offending record is skipped and counted; it never aborts the batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// NormalizeRecord turns a raw provider record into a listing row plus its
// ordered media. Records missing a mandatory address component are rejected
// with a ValidationError.
func NormalizeRecord(rec upstream.PropertyRecord) (*models.Listing, []models.Media, error) {
	street := strings.TrimSpace(rec.AddressLine1)
	city := strings.TrimSpace(rec.City)
	state := strings.TrimSpace(rec.State)
	zip := strings.TrimSpace(rec.ZipCode)

	// Some providers only send the formatted address; split it into
	// components when the structured fields are missing.
	if rec.FormattedAddress != "" {
		fStreet, fCity, fState, fZip := splitFormattedAddress(rec.FormattedAddress)
		if street == "" {
			street = fStreet
		}
		if city == "" {
			city = fCity
		}
		if state == "" {
			state = fState
		}
		if zip == "" {
			zip = fZip
		}
	}

	switch {
	case street == "":
		return nil, nil, &ValidationError{Field: "address", Reason: "missing street"}
	case city == "":
		return nil, nil, &ValidationError{Field: "city", Reason: "missing city"}
	case state == "":
		return nil, nil, &ValidationError{Field: "state", Reason: "missing state"}
	}

	state = strings.ToUpper(state)

	listing := &models.Listing{
		ID:            models.ListingID(rec.ID, street, city, state, zip),
		SourceID:      rec.ID,
		Slug:          Slugify(street + " " + city + " " + state + " " + zip),
		StreetAddress: street,
		City:          city,
		State:         state,
		Zip:           zip,
		Latitude:      rec.Latitude,
		Longitude:     rec.Longitude,
		Price:         rec.Price,
		Beds:          rec.Bedrooms,
		Baths:         rec.Bathrooms,
		Sqft:          rec.SquareFootage,
		LotSize:       rec.LotSize,
		YearBuilt:     rec.YearBuilt,
		PropertyType:  strings.TrimSpace(rec.PropertyType),
		Subdivision:   strings.TrimSpace(rec.Subdivision),
		Remarks:       strings.TrimSpace(rec.Remarks),
		Status:        NormalizeStatus(rec.Status),
	}

	if t, ok := parseUpstreamDate(rec.ListedDate); ok {
		listing.ListedAt = &t
	}

	media := make([]models.Media, 0, len(rec.Photos))
	for i, photoURL := range rec.Photos {
		if strings.TrimSpace(photoURL) == "" {
			continue
		}
		media = append(media, models.Media{
			ListingID: listing.ID,
			URL:       photoURL,
			Position:  i,
		})
	}

	return listing, media, nil
}

// NormalizeStatus coerces the provider's status vocabulary into the
// internal enumeration. Unknown values default to active.
func NormalizeStatus(raw string) models.ListingStatus {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", " ")) {
	case "active", "for sale", "forsale":
		return models.StatusActive
	case "pending", "under contract", "contingent":
		return models.StatusPending
	case "sold", "closed":
		return models.StatusSold
	case "withdrawn", "cancelled", "canceled":
		return models.StatusWithdrawn
	case "expired":
		return models.StatusExpired
	default:
		return models.StatusActive
	}
}

// Slugify derives a URL-safe slug from an address string.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// splitFormattedAddress splits "123 Main St, Austin, TX 78701" into its
// components. Missing pieces come back empty.
func splitFormattedAddress(formatted string) (street, city, state, zip string) {
	parts := strings.Split(formatted, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 0 {
		street = parts[0]
	}
	if len(parts) > 1 {
		city = parts[1]
	}
	if len(parts) > 2 {
		stateZip := strings.Fields(parts[2])
		if len(stateZip) > 0 {
			state = stateZip[0]
		}
		if len(stateZip) > 1 {
			zip = stateZip[1]
		}
	}
	return street, city, state, zip
}

// parseUpstreamDate accepts the provider's date formats.
func parseUpstreamDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
