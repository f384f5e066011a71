package domain

// Item is a product sold from a slot. Price is in drink credits.
type Item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Slot is a single dispensing position of a machine.
type Slot struct {
	Number  int64  `json:"number"`
	Machine int64  `json:"machine"`
	Item    Item   `json:"item"`
	Active  bool   `json:"active"`
	Empty   bool   `json:"empty"`
	Count   *int64 `json:"count"`
}

// Dispensable reports whether the slot can be offered for ordering.
// A missing count means the machine does not track stock for the slot.
func (s Slot) Dispensable() bool {
	if !s.Active || s.Empty {
		return false
	}
	return s.Count == nil || *s.Count > 0
}

// Machine is a vending machine as reported by the drink API.
type Machine struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	IsOnline    bool   `json:"is_online"`
	Slots       []Slot `json:"slots"`
}

// CatalogSnapshot is the parsed body of one catalog fetch.
// A snapshot supersedes the previous one entirely.
type CatalogSnapshot struct {
	Machines []Machine `json:"machines"`
	Message  string    `json:"message"`
}
