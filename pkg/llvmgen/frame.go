package llvmgen

const (
	stackAlignment = 16 // frames are allocated with 16-byte alignment
	pointerSize    = 8  // 64-bit pointers
	headerSize     = 4 + 4 + pointerSize
)

// Shadow-stack frame layout. Frames are linked from @ralph.stackTop
// through the next field; the collector walks the chain and scans size
// slots of each frame.
//
//	+---------------------------+  <- frame address
//	| size        (i32)         |  +0
//	| callSiteId  (i32)         |  +4
//	| next        (frame*)      |  +8
//	+---------------------------+
//	| slot 0      (i8*)         |  +16
//	| ...                       |
//	| slot N-1    (i8*)         |
//	+---------------------------+  <- rounded up to 16 bytes

// FrameLayout describes the shadow-stack frame of one method
type FrameLayout struct {
	Slots      int   // number of root slots
	HeaderSize int64 // size, callSiteId and next fields
	SlotsSize  int64 // bytes taken by the slot array
	TotalSize  int64 // allocation size, aligned
}

// ComputeLayout computes the frame layout for a method with the given
// number of root slots. A method without slots has no frame.
func ComputeLayout(slots int) FrameLayout {
	if slots <= 0 {
		return FrameLayout{}
	}
	layout := FrameLayout{
		Slots:      slots,
		HeaderSize: headerSize,
		SlotsSize:  int64(slots) * pointerSize,
	}
	layout.TotalSize = alignUp(layout.HeaderSize+layout.SlotsSize, stackAlignment)
	return layout
}

// SlotOffset returns the byte offset of a slot from the frame address
func (l FrameLayout) SlotOffset(slot int) int64 {
	return l.HeaderSize + int64(slot)*pointerSize
}

// alignUp rounds n up to the nearest multiple of align
func alignUp(n, align int64) int64 {
	if align == 0 {
		return n
	}
	return ((n + align - 1) / align) * align
}
