package catalog

// ProductDraft is the raw create-product form as typed by the user.
type ProductDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Rating      string `json:"rating"`
	Price       string `json:"price"`
	Mrp         string `json:"mrp"`
	Stock       string `json:"stock"`
	Sales       string `json:"sales"`
}

// MetadataDraft is the raw metadata form as typed by the user.
type MetadataDraft struct {
	ProductID string `json:"productId"`
	Ram       string `json:"ram"`
	Storage   string `json:"storage"`
	Color     string `json:"color"`
	Screen    string `json:"screen"`
}

// ProductCreateDto is the validated payload sent to the remote create endpoint.
type ProductCreateDto struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Rating      float64 `json:"rating"`
	Price       float64 `json:"price"`
	Mrp         float64 `json:"mrp"`
	Stock       int64   `json:"stock"`
	Sales       int64   `json:"sales"`
}

// MetadataUpdateDto is the validated payload sent to the remote metadata endpoint.
// Empty metadata fields are omitted so the update stays additive.
type MetadataUpdateDto struct {
	ProductID string   `json:"productId"`
	Metadata  Metadata `json:"metadata"`
}
