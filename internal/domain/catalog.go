package domain

type Buyer struct {
	ID               string `json:"ID,omitempty"`
	Name             string `json:"Name"`
	Active           bool   `json:"Active"`
	DefaultCatalogID string `json:"DefaultCatalogID,omitempty"`
}

type Catalog struct {
	ID     string `json:"ID,omitempty"`
	Name   string `json:"Name"`
	Active bool   `json:"Active"`
}

// CatalogAssignment grants a buyer visibility of a catalog.
type CatalogAssignment struct {
	CatalogID         string `json:"CatalogID"`
	BuyerID           string `json:"BuyerID"`
	ViewAllCategories bool   `json:"ViewAllCategories"`
	ViewAllProducts   bool   `json:"ViewAllProducts"`
}

// ListPage is the envelope returned by list endpoints.
type ListPage[T any] struct {
	Items []T `json:"Items"`
	Meta  struct {
		Page       int `json:"Page"`
		PageSize   int `json:"PageSize"`
		TotalCount int `json:"TotalCount"`
		TotalPages int `json:"TotalPages"`
	} `json:"Meta"`
}

var (
	DefaultBuyer = Buyer{
		ID:     "defaultbuyer",
		Name:   "Default Buyer",
		Active: true,
	}
	DefaultCatalog = Catalog{
		ID:     "defaultcatalog",
		Name:   "Default Catalog",
		Active: true,
	}
)
