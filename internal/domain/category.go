package domain

// CategoryNode is one entry of the reconstructed category tree.
type CategoryNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"` // empty for roots
	Depth    int    `json:"depth"`     // 0 for roots
}

// Category is the remote category entity.
type Category struct {
	ID       string `json:"ID"`
	Name     string `json:"Name"`
	ParentID string `json:"ParentID,omitempty"`
	Active   bool   `json:"Active"`
}

// CategoryAssignment grants a buyer visibility of a category.
type CategoryAssignment struct {
	CategoryID      string `json:"CategoryID"`
	BuyerID         string `json:"BuyerID"`
	Visible         bool   `json:"Visible"`
	ViewAllProducts bool   `json:"ViewAllProducts"`
}

// ProductAssignment links a product to a leaf category.
type ProductAssignment struct {
	CategoryID string `json:"CategoryID"`
	ProductID  string `json:"ProductID"`
}

func NewCategory(node CategoryNode) Category {
	return Category{
		ID:       node.ID,
		Name:     node.Name,
		ParentID: node.ParentID,
		Active:   true,
	}
}

func NewCategoryAssignment(categoryID, buyerID string) CategoryAssignment {
	return CategoryAssignment{
		CategoryID:      categoryID,
		BuyerID:         buyerID,
		Visible:         true,
		ViewAllProducts: true,
	}
}
