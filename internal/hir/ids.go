package hir

import "strconv"

// BlockID indexes a basic block inside one control-flow graph.
type BlockID int32

const (
	NoBlockID BlockID = -1
	// FinalBlock is the single exit; it only holds the final return.
	FinalBlock BlockID = 0
	// StartBlock is the single entry.
	StartBlock BlockID = 1
)

func (id BlockID) String() string {
	if id == NoBlockID {
		return "bb?"
	}
	return "bb" + strconv.Itoa(int(id))
}

// RetVar is the stem of the implicit return variables `_out0`, `_out1`, ...
const RetVar = "_out"

// RetName returns the name of the i-th return variable.
func RetName(i int) string {
	return RetVar + strconv.Itoa(i)
}
