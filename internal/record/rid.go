package record

import "fmt"

// RID identifies a record by the block it lives in and its slot number
// within that block.
type RID struct {
	BlockNum int64
	Slot     int32
}

// NewRID constructs a RID.
func NewRID(blockNum int64, slot int32) RID {
	return RID{BlockNum: blockNum, Slot: slot}
}

func (r RID) String() string {
	return fmt.Sprintf("[block %d, slot %d]", r.BlockNum, r.Slot)
}
