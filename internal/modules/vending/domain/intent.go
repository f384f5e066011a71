package domain

// Intent is a user action coming from the presentation layer.
type Intent interface {
	isIntent()
}

// OrderRequest asks to order the item in the given slot.
type OrderRequest struct {
	MachineID int64 `json:"machineId"`
	Slot      int64 `json:"slot"`
}

// CancelRequest asks the live order, if any, to stop scanning.
type CancelRequest struct{}

func (OrderRequest) isIntent()  {}
func (CancelRequest) isIntent() {}
