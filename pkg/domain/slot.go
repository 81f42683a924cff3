package domain

// Slot identifies one of the two scan positions in the pairing workflow.
type Slot string

const (
	// SlotFirst is the delivery code position.
	SlotFirst Slot = "first"
	// SlotSecond is the product code position.
	SlotSecond Slot = "second"
)

// Slots lists every slot in scan order.
var Slots = []Slot{SlotFirst, SlotSecond} //nolint: gochecknoglobals

// Valid reports whether s is one of the known slots.
func (s Slot) Valid() bool {
	return s == SlotFirst || s == SlotSecond
}

func (s Slot) String() string { return string(s) }
