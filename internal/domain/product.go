package domain

import "github.com/shopspring/decimal"

// Amount is a decimal that marshals as a bare JSON number carrying the
// feed's exact digits.
type Amount struct {
	decimal.Decimal
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

type PriceBreak struct {
	Quantity int    `json:"Quantity"`
	Price    Amount `json:"Price"`
}

type PriceSchedule struct {
	ID          string       `json:"ID"`
	Name        string       `json:"Name"`
	PriceBreaks []PriceBreak `json:"PriceBreaks"`
}

type ProductImage struct {
	URL          string `json:"Url,omitempty"`
	ThumbnailURL string `json:"ThumbnailUrl,omitempty"`
}

// ProductXp holds extended properties stored alongside the product.
type ProductXp struct {
	Images []ProductImage `json:"Images,omitempty"`
}

type Product struct {
	ID                     string    `json:"ID"`
	Name                   string    `json:"Name"`
	Description            string    `json:"Description,omitempty"`
	DefaultPriceScheduleID string    `json:"DefaultPriceScheduleID,omitempty"`
	Active                 bool      `json:"Active"`
	Xp                     ProductXp `json:"xp"`
}

// NewPriceSchedule derives the single-break price schedule for a product row.
// The schedule shares the product id so re-runs overwrite instead of duplicating.
func NewPriceSchedule(row ProductRow) PriceSchedule {
	return PriceSchedule{
		ID:   row.ID,
		Name: row.Name,
		PriceBreaks: []PriceBreak{
			{Quantity: 1, Price: Amount{row.Price}},
		},
	}
}

func NewProduct(row ProductRow) Product {
	p := Product{
		ID:                     row.ID,
		Name:                   row.Name,
		Description:            row.Description,
		DefaultPriceScheduleID: row.ID,
		Active:                 true,
	}
	if row.ImageURL != "" || row.ThumbnailURL != "" {
		p.Xp.Images = []ProductImage{{URL: row.ImageURL, ThumbnailURL: row.ThumbnailURL}}
	}
	return p
}
