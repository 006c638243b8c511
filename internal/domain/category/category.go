package category

// Category is a product type as shown in the catalog navigation.
type Category struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}
