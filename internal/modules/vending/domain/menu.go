package domain

import "fmt"

// SlotView is a dispensable slot as shown to the user.
type SlotView struct {
	MachineID   int64  `json:"machineId"`
	MachineName string `json:"machineName"`
	Slot        int64  `json:"slot"`
	ItemName    string `json:"itemName"`
	ItemCost    int64  `json:"itemCost"`
}

// MachineView is the derived menu for one allow-listed machine.
type MachineView struct {
	MachineID   int64      `json:"machineId"`
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Items       []SlotView `json:"items"`
	Visible     bool       `json:"visible"`
}

// MenuFilter decides which machines of a snapshot are surfaced.
type MenuFilter struct {
	Machines      []int64
	RequireOnline bool
}

// PlaceholderName is shown for allow-listed machines the backend has not reported yet.
func PlaceholderName(machineID int64) string {
	return fmt.Sprintf("Unknown Machine %d", machineID)
}

// BuildMenu derives the machine views from scratch, ordered like the allow-list.
func (f MenuFilter) BuildMenu(snapshot CatalogSnapshot) []MachineView {
	views := make([]MachineView, len(f.Machines))
	index := make(map[int64]int, len(f.Machines))
	for i, id := range f.Machines {
		views[i] = MachineView{MachineID: id, DisplayName: PlaceholderName(id), Items: []SlotView{}}
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}

	for _, machine := range snapshot.Machines {
		i, ok := index[machine.ID]
		if !ok {
			continue
		}
		if f.RequireOnline && !machine.IsOnline {
			continue
		}
		items := make([]SlotView, 0, len(machine.Slots))
		for _, slot := range machine.Slots {
			if !slot.Dispensable() {
				continue
			}
			items = append(items, SlotView{
				MachineID:   machine.ID,
				MachineName: machine.Name,
				Slot:        slot.Number,
				ItemName:    slot.Item.Name,
				ItemCost:    slot.Item.Price,
			})
		}
		views[i] = MachineView{
			MachineID:   machine.ID,
			Name:        machine.Name,
			DisplayName: machine.DisplayName,
			Items:       items,
			Visible:     len(items) > 0,
		}
	}
	return views
}

// FindSlot locates a dispensable slot in the current menu.
func FindSlot(views []MachineView, machineID, slot int64) (SlotView, bool) {
	for _, view := range views {
		if view.MachineID != machineID {
			continue
		}
		for _, item := range view.Items {
			if item.Slot == slot {
				return item, true
			}
		}
	}
	return SlotView{}, false
}
