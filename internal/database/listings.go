package database

import (
	"strings"

	"listing-portal/internal/models"

	"gorm.io/gorm"
)

// ListingFilters are the combinable filters accepted by the paged listing
// query. Pointer fields impose no constraint when nil.
type ListingFilters struct {
	Status       string
	City         string
	PropertyType string
	MinPrice     *int
	MaxPrice     *int
	MinBeds      *int
	MinBaths     *float64
	SortBy       string
	Limit        int
	Offset       int

	// IncludeRemoved widens reads to soft-deleted rows. Every read helper
	// excludes them unless this is set.
	IncludeRemoved bool
}

// PagedListings is a filtered page plus the total matching count.
type PagedListings struct {
	Listings []models.Listing `json:"listings"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListingDetail is the full read shape for one listing.
type ListingDetail struct {
	Listing       models.Listing         `json:"listing"`
	Media         []models.Media         `json:"media"`
	PriceHistory  []models.PriceHistory  `json:"price_history"`
	StatusHistory []models.StatusHistory `json:"status_history"`
}

// GetListingsWithMedia returns a filtered, sorted page of listings with the
// total count, eager-loading each listing's primary photo.
func (d *DB) GetListingsWithMedia(f ListingFilters) (*PagedListings, error) {
	q := d.db.Model(&models.Listing{})
	q = applyFilters(q, f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var listings []models.Listing
	err := q.Order(orderClause(f.SortBy)).
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&listings).Error
	if err != nil {
		return nil, err
	}

	if err := d.attachPrimaryMedia(listings); err != nil {
		return nil, err
	}

	return &PagedListings{
		Listings: listings,
		Total:    total,
		Limit:    f.Limit,
		Offset:   f.Offset,
	}, nil
}

// GetListingByKey returns full detail for one listing addressed by id or
// slug: ordered media plus complete price and status history, newest first.
func (d *DB) GetListingByKey(key string) (*ListingDetail, error) {
	var listing models.Listing
	err := d.db.Where("removed = ?", false).
		Where("id = ? OR slug = ?", key, key).
		First(&listing).Error
	if err != nil {
		return nil, err
	}

	detail := &ListingDetail{Listing: listing}

	if err := d.db.Where("listing_id = ?", listing.ID).
		Order("position ASC").
		Find(&detail.Media).Error; err != nil {
		return nil, err
	}
	if err := d.db.Where("listing_id = ?", listing.ID).
		Order("recorded_at DESC, id DESC").
		Find(&detail.PriceHistory).Error; err != nil {
		return nil, err
	}
	if err := d.db.Where("listing_id = ?", listing.ID).
		Order("recorded_at DESC, id DESC").
		Find(&detail.StatusHistory).Error; err != nil {
		return nil, err
	}

	return detail, nil
}

// GetListingsByCity returns non-removed listings for a city, matched
// case-insensitively.
func (d *DB) GetListingsByCity(city string) ([]models.Listing, error) {
	var listings []models.Listing
	err := d.db.Where("removed = ?", false).
		Where("LOWER(city) = ?", strings.ToLower(city)).
		Order("created_at DESC").
		Find(&listings).Error
	return listings, err
}

// SearchListings performs a case-insensitive match across address, city and
// free-text remarks. This is the storage-level fallback; interactive search
// goes through the search index.
func (d *DB) SearchListings(query string) ([]models.Listing, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var listings []models.Listing
	err := d.db.Where("removed = ?", false).
		Where("LOWER(street_address) LIKE ? OR LOWER(city) LIKE ? OR LOWER(remarks) LIKE ?",
			pattern, pattern, pattern).
		Order("created_at DESC").
		Find(&listings).Error
	return listings, err
}

// FindByNaturalKey looks up a listing by its derived id, including
// soft-deleted rows so a returning property resurrects its original row.
func (d *DB) FindByNaturalKey(id string) (*models.Listing, error) {
	var listing models.Listing
	err := d.db.Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetActiveListingsWithMedia returns every non-removed listing with its
// primary photo attached. Used to rebuild the search projection.
func (d *DB) GetActiveListingsWithMedia() ([]models.Listing, error) {
	var listings []models.Listing
	err := d.db.Where("removed = ?", false).Find(&listings).Error
	if err != nil {
		return nil, err
	}
	if err := d.attachPrimaryMedia(listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetOrCreateOffice upserts a brokerage office reference row by name.
func (d *DB) GetOrCreateOffice(name, phone string) (*models.Office, error) {
	office := models.Office{Name: name, Phone: phone}
	err := d.db.Where(models.Office{Name: name}).FirstOrCreate(&office).Error
	if err != nil {
		return nil, err
	}
	return &office, nil
}

// GetOrCreateMember upserts a listing agent reference row by name.
func (d *DB) GetOrCreateMember(name, phone string, officeID *int64) (*models.Member, error) {
	member := models.Member{Name: name, Phone: phone, OfficeID: officeID}
	err := d.db.Where(models.Member{Name: name}).FirstOrCreate(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// EnsureDataSource upserts the provider reference row.
func (d *DB) EnsureDataSource(name, baseURL string) (*models.DataSource, error) {
	source := models.DataSource{Name: name, BaseURL: baseURL}
	err := d.db.Where(models.DataSource{Name: name}).FirstOrCreate(&source).Error
	if err != nil {
		return nil, err
	}
	return &source, nil
}

// attachPrimaryMedia loads the lowest-position photo for each listing in one
// query and attaches it as the single Media element.
func (d *DB) attachPrimaryMedia(listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	ids := make([]string, 0, len(listings))
	for i := range listings {
		ids = append(ids, listings[i].ID)
	}

	var media []models.Media
	err := d.db.Where("listing_id IN ?", ids).
		Order("position ASC").
		Find(&media).Error
	if err != nil {
		return err
	}

	primary := make(map[string]models.Media, len(listings))
	for _, m := range media {
		if _, seen := primary[m.ListingID]; !seen {
			primary[m.ListingID] = m
		}
	}

	for i := range listings {
		if m, ok := primary[listings[i].ID]; ok {
			listings[i].Media = []models.Media{m}
		}
	}
	return nil
}

// applyFilters adds the combinable WHERE clauses.
func applyFilters(q *gorm.DB, f ListingFilters) *gorm.DB {
	if !f.IncludeRemoved {
		q = q.Where("removed = ?", false)
	}
	if f.Status != "" {
		q = q.Where("status = ?", strings.ToLower(f.Status))
	}
	if f.City != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(f.City))
	}
	if f.PropertyType != "" {
		q = q.Where("property_type = ?", f.PropertyType)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinBeds != nil {
		q = q.Where("beds >= ?", *f.MinBeds)
	}
	if f.MinBaths != nil {
		q = q.Where("baths >= ?", *f.MinBaths)
	}
	return q
}

// orderClause maps the sort enumeration to SQL, keeping NULL prices last.
func orderClause(sortBy string) string {
	switch sortBy {
	case "price_desc":
		return "CASE WHEN price IS NULL THEN 1 ELSE 0 END, price DESC"
	case "price_asc":
		return "CASE WHEN price IS NULL THEN 1 ELSE 0 END, price ASC"
	case "date_asc":
		return "COALESCE(listed_at, created_at) ASC"
	case "date_desc":
		return "COALESCE(listed_at, created_at) DESC"
	default:
		return "COALESCE(listed_at, created_at) DESC"
	}
}
