package surface

import (
	"fmt"
)

// Slot is an attachment point of a FrameBuffer.
type Slot int

const (
	SlotColor0 Slot = iota
	SlotColor1
	SlotColor2
	SlotColor3
	SlotDepthStencil

	slotCount
)

// ColorSlot returns the color slot with the given index.
func ColorSlot(i int) Slot {
	return SlotColor0 + Slot(i)
}

// IsColor reports whether the slot takes a color attachment.
func (s Slot) IsColor() bool {
	return s >= SlotColor0 && s <= SlotColor3
}

func (s Slot) valid() bool {
	return s >= SlotColor0 && s < slotCount
}

func (s Slot) String() string {
	switch {
	case s.IsColor():
		return fmt.Sprintf("Color%d", int(s-SlotColor0))
	case s == SlotDepthStencil:
		return "DepthStencil"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// FrameBuffer is a named set of attachment slots referencing surfaces by handle.
// Slots are filled through Manager.Attach, which enforces the attachment rules.
type FrameBuffer struct {
	label string
	slots [slotCount]Handle
}

// Label returns the frame buffer name.
func (fb *FrameBuffer) Label() string {
	return fb.label
}

// Attachment returns the handle bound to a slot, or the zero Handle.
func (fb *FrameBuffer) Attachment(s Slot) Handle {
	if !s.valid() {
		return Handle{}
	}
	return fb.slots[s]
}

// ColorCount returns the number of bound color slots.
func (fb *FrameBuffer) ColorCount() int {
	n := 0
	for s := SlotColor0; s <= SlotColor3; s++ {
		if !fb.slots[s].IsZero() {
			n++
		}
	}
	return n
}
