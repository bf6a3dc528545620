package domain

// TagItem identifies an item placement inside a tag. Identity is the
// (item, serial, lot) key triple; Count is quantity only and takes no part
// in equality or hashing.
type TagItem struct {
	ItemKeyID    int64 `json:"item_key_id" db:"item_key_id"`
	SerialKeyID  int64 `json:"serial_key_id" db:"serial_key_id"`
	LotInfoKeyID int64 `json:"lot_info_key_id" db:"lot_info_key_id"`
	Count        int   `json:"count" db:"count"`
}

// TagItemKey is the comparable identity triple of a TagItem, usable directly
// as a map key.
type TagItemKey struct {
	ItemKeyID    int64
	SerialKeyID  int64
	LotInfoKeyID int64
}

// Key returns the identity triple.
func (i TagItem) Key() TagItemKey {
	return TagItemKey{
		ItemKeyID:    i.ItemKeyID,
		SerialKeyID:  i.SerialKeyID,
		LotInfoKeyID: i.LotInfoKeyID,
	}
}

// Equal reports identity equality. Two items with different counts but the
// same key triple are equal.
func (i TagItem) Equal(other TagItem) bool {
	return i.Key() == other.Key()
}

// Copy returns an independent value with identical fields.
func (i TagItem) Copy() TagItem {
	return i
}
