package upstream

// PropertyRecord is the provider's raw shape for one property. Fields are
// optional unless the provider documents them as always present; the sync
// layer decides what is mandatory.
type PropertyRecord struct {
	ID               string   `json:"id"`
	FormattedAddress string   `json:"formattedAddress"`
	AddressLine1     string   `json:"addressLine1"`
	City             string   `json:"city"`
	State            string   `json:"state"`
	ZipCode          string   `json:"zipCode"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`

	PropertyType  string   `json:"propertyType"`
	Bedrooms      *int     `json:"bedrooms"`
	Bathrooms     *float64 `json:"bathrooms"`
	SquareFootage *int     `json:"squareFootage"`
	LotSize       *int     `json:"lotSize"`
	YearBuilt     *int     `json:"yearBuilt"`

	Price       *int   `json:"price"`
	Status      string `json:"status"`
	ListedDate  string `json:"listedDate"`
	RemovedDate string `json:"removedDate"`

	Subdivision string   `json:"subdivision"`
	Remarks     string   `json:"remarks"`
	Photos      []string `json:"photos"`

	ListingAgent  *Contact `json:"listingAgent"`
	ListingOffice *Contact `json:"listingOffice"`
}

// Contact is an agent or office reference embedded in a record.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Filters bound a property records request.
type Filters struct {
	Address   string
	City      string
	State     string
	Zip       string
	Latitude  *float64
	Longitude *float64
	Radius    *float64
	Limit     int
	Offset    int
}

// Estimate is a valuation or rent estimate for one address.
type Estimate struct {
	Price     int     `json:"price"`
	PriceLow  int     `json:"priceRangeLow"`
	PriceHigh int     `json:"priceRangeHigh"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valuation is the partial-result pair for a combined value+rent request.
// Each side carries its own error; a failure in one never suppresses a
// success in the other.
type Valuation struct {
	Value    *Estimate `json:"value,omitempty"`
	ValueErr error     `json:"-"`
	Rent     *Estimate `json:"rent,omitempty"`
	RentErr  error     `json:"-"`
}
