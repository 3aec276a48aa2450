package types

// OrderItem is a sanitized snapshot of a purchased catalog item. Orders store
// the snapshot as jsonb so later catalog edits never rewrite history.
type OrderItem struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Image    string `json:"image,omitempty"`
}

// OrderItems is the jsonb-serialized item list on an order row.
type OrderItems []OrderItem
