package entities

// Item is one prize in a box. Odd is the width of its slice of [0, 1).
type Item struct {
	ID     int64   `db:"id" json:"id"`
	Slug   string  `db:"slug" json:"slug"`
	Name   string  `db:"name" json:"name"`
	Value  int64   `db:"value" json:"value"`
	Weight int64   `db:"weight" json:"weight"`
	Odd    float64 `db:"odd" json:"odd"`
}

// Box is a read-only catalog entry
type Box struct {
	ID       int64  `db:"id" json:"id"`
	Slug     string `db:"slug" json:"slug"`
	Name     string `db:"name" json:"name"`
	Price    int64  `db:"price" json:"price"`
	IsActive bool   `db:"is_active" json:"isActive"`
	Items    []Item `db:"-" json:"items"`
}

// HasItems returns true if the box can be spun
func (b *Box) HasItems() bool {
	return len(b.Items) > 0
}

// Snapshot returns a copy of the item list that later catalog edits cannot touch
func (b *Box) Snapshot() []Item {
	items := make([]Item, len(b.Items))
	copy(items, b.Items)
	return items
}
