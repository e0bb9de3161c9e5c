package world

// MaxInventory caps how many items a player can carry.
const MaxInventory = 20

// InventoryFull reports whether the player cannot take another item.
func (p *Player) InventoryFull() bool {
	return len(p.Inventory) >= MaxInventory
}

// FindItem returns the inventory item with the given id, or nil.
func (p *Player) FindItem(id string) *Item {
	for _, it := range p.Inventory {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// Give moves a ground item into the player's inventory.
func (p *Player) Give(it *Item) {
	it.Pos = nil
	it.OwnerID = p.ID
	p.Inventory = append(p.Inventory, it)
}

// TakeItem removes and returns the inventory item with the given id.
func (p *Player) TakeItem(id string) *Item {
	for i, it := range p.Inventory {
		if it.ID == id {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			return it
		}
	}
	return nil
}
