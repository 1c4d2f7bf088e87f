package printify

// Product is the subset of a Printify product the pipeline reads back.
type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Visible  bool      `json:"visible"`
	External *External `json:"external"`
}

// External links a Printify product to its storefront counterpart.
type External struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// StorefrontID returns external.id or "".
func (p *Product) StorefrontID() string {
	if p == nil || p.External == nil {
		return ""
	}
	return p.External.ID
}

// Handle returns external.handle or "".
func (p *Product) Handle() string {
	if p == nil || p.External == nil {
		return ""
	}
	return p.External.Handle
}

// ProductRequest is the body of POST /shops/{shop}/products.json.
type ProductRequest struct {
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Tags            []string    `json:"tags"`
	BlueprintID     int         `json:"blueprint_id"`
	PrintProviderID int         `json:"print_provider_id"`
	Variants        []Variant   `json:"variants"`
	PrintAreas      []PrintArea `json:"print_areas"`
}

// Variant prices one blueprint variant in cents.
type Variant struct {
	ID        int64 `json:"id"`
	Price     int   `json:"price"`
	IsEnabled bool  `json:"is_enabled"`
}

// PrintArea places artwork on a set of variants.
type PrintArea struct {
	VariantIDs   []int64       `json:"variant_ids"`
	Placeholders []Placeholder `json:"placeholders"`
}

// Placeholder is one print position, e.g. "front".
type Placeholder struct {
	Position string        `json:"position"`
	Images   []PlacedImage `json:"images"`
}

// PlacedImage positions an uploaded image inside a placeholder. Coordinates
// are fractions of the print area.
type PlacedImage struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
	Angle float64 `json:"angle"`
}

// ProductSpec describes the fixed product shape every meme is printed on.
type ProductSpec struct {
	BlueprintID int
	ProviderID  int
	VariantIDs  []int64
	PriceCents  int
}

// NewProductRequest builds a single-image front print centered at full scale
// with every variant enabled at the configured price.
func NewProductRequest(spec ProductSpec, imageID, title, description string, tags []string) ProductRequest {
	if tags == nil {
		tags = []string{}
	}
	variants := make([]Variant, 0, len(spec.VariantIDs))
	for _, id := range spec.VariantIDs {
		variants = append(variants, Variant{ID: id, Price: spec.PriceCents, IsEnabled: true})
	}
	return ProductRequest{
		Title:           title,
		Description:     description,
		Tags:            tags,
		BlueprintID:     spec.BlueprintID,
		PrintProviderID: spec.ProviderID,
		Variants:        variants,
		PrintAreas: []PrintArea{{
			VariantIDs: append([]int64(nil), spec.VariantIDs...),
			Placeholders: []Placeholder{{
				Position: "front",
				Images:   []PlacedImage{{ID: imageID, X: 0.5, Y: 0.5, Scale: 1, Angle: 0}},
			}},
		}},
	}
}

// PublishRequest selects which product attributes are pushed to the sales
// channel.
type PublishRequest struct {
	Title            bool   `json:"title"`
	Description      bool   `json:"description"`
	Images           bool   `json:"images"`
	Variants         bool   `json:"variants"`
	Tags             bool   `json:"tags"`
	KeyFeatures      bool   `json:"keyFeatures"`
	ShippingTemplate bool   `json:"shipping_template"`
	SalesChannel     string `json:"sales_channel,omitempty"`
}

// PublishAll returns a request that pushes every attribute.
func PublishAll(salesChannel string) PublishRequest {
	return PublishRequest{
		Title:            true,
		Description:      true,
		Images:           true,
		Variants:         true,
		Tags:             true,
		KeyFeatures:      true,
		ShippingTemplate: true,
		SalesChannel:     salesChannel,
	}
}

type uploadRequest struct {
	FileName string `json:"file_name"`
	Contents string `json:"contents"`
}

type uploadResponse struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
}
