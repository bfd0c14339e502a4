package search

import (
	"strings"

	"listing-portal/internal/models"
)

// Document is the denormalized search projection of a listing. It is derived
// from storage and carries no authority; the index is rebuilt from the
// listings table.
type Document struct {
	ID            string   `json:"id"`
	Slug          string   `json:"slug"`
	StreetAddress string   `json:"street_address"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	Zip           string   `json:"zip"`
	Price         *int     `json:"price,omitempty"`
	Status        string   `json:"status"`
	PropertyType  string   `json:"property_type,omitempty"`
	Beds          *int     `json:"beds,omitempty"`
	Baths         *float64 `json:"baths,omitempty"`
	Sqft          *int     `json:"sqft,omitempty"`
	YearBuilt     *int     `json:"year_built,omitempty"`
	Subdivision   string   `json:"subdivision,omitempty"`
	PhotoURL      string   `json:"photo_url,omitempty"`
	ListedAt      int64    `json:"listed_at"`

	// SearchText concatenates the free-text fields so a single searchable
	// attribute covers address, neighborhood and remarks.
	SearchText string `json:"search_text"`
}

// NewDocument projects a listing (with its primary photo attached) into a
// search document.
func NewDocument(l models.Listing) Document {
	doc := Document{
		ID:            l.ID,
		Slug:          l.Slug,
		StreetAddress: l.StreetAddress,
		City:          l.City,
		State:         l.State,
		Zip:           l.Zip,
		Price:         l.Price,
		Status:        string(l.Status),
		PropertyType:  l.PropertyType,
		Beds:          l.Beds,
		Baths:         l.Baths,
		Sqft:          l.Sqft,
		YearBuilt:     l.YearBuilt,
		Subdivision:   l.Subdivision,
	}

	if len(l.Media) > 0 {
		doc.PhotoURL = l.Media[0].URL
	}

	if l.ListedAt != nil {
		doc.ListedAt = l.ListedAt.Unix()
	} else {
		doc.ListedAt = l.CreatedAt.Unix()
	}

	parts := []string{l.StreetAddress, l.City, l.State, l.Zip, l.Subdivision, l.PropertyType, l.Remarks}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	doc.SearchText = strings.Join(nonEmpty, " ")

	return doc
}
