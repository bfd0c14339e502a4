package query

import (
	"errors"
	"strconv"
	"time"

	"listing-portal/internal/database"
	"listing-portal/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNotFound means no listing matches the requested key.
var ErrNotFound = errors.New("listing not found")

// ErrService is the generic failure returned to callers. The specific
// storage cause is logged, never surfaced.
var ErrService = errors.New("listing query failed")

// Service is the public read edge over the storage layer. It owns pagination
// math and the outbound response shapes; every identifier it emits is
// string-typed so values above 2^53 survive JSON consumers.
type Service struct {
	db     *database.DB
	logger *logrus.Logger
}

// NewService creates a query service.
func NewService(db *database.DB, logger *logrus.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Params is the inbound filter bag for paged listing reads.
type Params struct {
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
}

// MediaView is the outbound media shape.
type MediaView struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// ListingView is the outbound listing shape.
type ListingView struct {
	ID            string      `json:"id"`
	Slug          string      `json:"slug"`
	Address       string      `json:"address"`
	StreetAddress string      `json:"streetAddress"`
	City          string      `json:"city"`
	State         string      `json:"state"`
	Zip           string      `json:"zip,omitempty"`
	Status        string      `json:"status"`
	Price         *int        `json:"price"`
	Beds          *int        `json:"beds"`
	Baths         *float64    `json:"baths"`
	Sqft          *int        `json:"sqft"`
	LotSize       *int        `json:"lotSize,omitempty"`
	YearBuilt     *int        `json:"yearBuilt,omitempty"`
	PropertyType  string      `json:"propertyType,omitempty"`
	Subdivision   string      `json:"subdivision,omitempty"`
	Remarks       string      `json:"remarks,omitempty"`
	Latitude      *float64    `json:"latitude,omitempty"`
	Longitude     *float64    `json:"longitude,omitempty"`
	ListedAt      *time.Time  `json:"listedAt,omitempty"`
	Media         []MediaView `json:"media"`
}

// HistoryView is one outbound history entry.
type HistoryView struct {
	ID         string    `json:"id"`
	Value      string    `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
}

// DetailView is the full outbound shape for one listing.
type DetailView struct {
	ListingView
	PriceHistory  []PriceView   `json:"priceHistory"`
	StatusHistory []HistoryView `json:"statusHistory"`
}

// PriceView is one outbound price history entry.
type PriceView struct {
	ID         string    `json:"id"`
	Price      int       `json:"price"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Page is one page of listings with pagination metadata.
type Page struct {
	Listings   []ListingView `json:"listings"`
	TotalCount int64         `json:"totalCount"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// GetListings returns a filtered, sorted page of listings.
func (s *Service) GetListings(p Params) (*Page, error) {
	limit, offset := normalizePaging(p.Limit, p.Offset)

	paged, err := s.db.GetListingsWithMedia(database.ListingFilters{
		Status:       p.Status,
		City:         p.City,
		PropertyType: p.PropertyType,
		MinPrice:     p.MinPrice,
		MaxPrice:     p.MaxPrice,
		MinBeds:      p.MinBeds,
		MinBaths:     p.MinBaths,
		SortBy:       p.SortBy,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to read listings page")
		return nil, ErrService
	}

	views := make([]ListingView, 0, len(paged.Listings))
	for _, l := range paged.Listings {
		views = append(views, newListingView(l, l.Media))
	}

	return &Page{
		Listings:   views,
		TotalCount: paged.Total,
		Page:       pageNumber(offset, limit),
		TotalPages: totalPages(paged.Total, limit),
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// GetListing returns the full detail for one listing addressed by id or
// slug.
func (s *Service) GetListing(key string) (*DetailView, error) {
	detail, err := s.db.GetListingByKey(key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to read listing detail")
		return nil, ErrService
	}

	view := &DetailView{
		ListingView:   newListingView(detail.Listing, detail.Media),
		PriceHistory:  make([]PriceView, 0, len(detail.PriceHistory)),
		StatusHistory: make([]HistoryView, 0, len(detail.StatusHistory)),
	}
	for _, h := range detail.PriceHistory {
		view.PriceHistory = append(view.PriceHistory, PriceView{
			ID:         strconv.FormatInt(h.ID, 10),
			Price:      h.Price,
			RecordedAt: h.RecordedAt,
		})
	}
	for _, h := range detail.StatusHistory {
		view.StatusHistory = append(view.StatusHistory, HistoryView{
			ID:         strconv.FormatInt(h.ID, 10),
			Value:      h.Status,
			RecordedAt: h.RecordedAt,
		})
	}
	return view, nil
}

// GetHistory returns just the history of one listing.
func (s *Service) GetHistory(key string) (*DetailView, error) {
	detail, err := s.GetListing(key)
	if err != nil {
		return nil, err
	}
	detail.Media = nil
	return detail, nil
}

func newListingView(l models.Listing, media []models.Media) ListingView {
	view := ListingView{
		ID:            l.ID,
		Slug:          l.Slug,
		Address:       l.StreetAddress + ", " + l.City + ", " + l.State,
		StreetAddress: l.StreetAddress,
		City:          l.City,
		State:         l.State,
		Zip:           l.Zip,
		Status:        string(l.Status),
		Price:         l.Price,
		Beds:          l.Beds,
		Baths:         l.Baths,
		Sqft:          l.Sqft,
		LotSize:       l.LotSize,
		YearBuilt:     l.YearBuilt,
		PropertyType:  l.PropertyType,
		Subdivision:   l.Subdivision,
		Remarks:       l.Remarks,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		ListedAt:      l.ListedAt,
		Media:         make([]MediaView, 0, len(media)),
	}
	if l.Zip != "" {
		view.Address += " " + l.Zip
	}
	for _, m := range media {
		view.Media = append(view.Media, MediaView{
			ID:    strconv.FormatInt(m.ID, 10),
			URL:   m.URL,
			Order: m.Position,
		})
	}
	return view
}

func normalizePaging(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pageNumber(offset, limit int) int {
	return offset/limit + 1
}

func totalPages(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}
