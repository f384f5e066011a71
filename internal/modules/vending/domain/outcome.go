package domain

import "time"

// VendOutcome records one dispense attempt for downstream consumers.
type VendOutcome struct {
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	OrderID     string    `json:"order_id"`
	MachineID   int64     `json:"machine_id"`
	MachineName string    `json:"machine_name"`
	Slot        int64     `json:"slot"`
	ItemName    string    `json:"item_name"`
	ItemCost    int64     `json:"item_cost"`
	UID         string    `json:"uid"`
	Succeeded   bool      `json:"succeeded"`
	Status      int       `json:"status,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

const (
	EventVendDropped = "vend.dropped"
	EventVendFailed  = "vend.failed"
)
