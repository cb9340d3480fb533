package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Loading the program document
	LoadInfo          Code = 1000
	LoadInvalidYAML   Code = 1001
	LoadUnknownStmt   Code = 1002
	LoadBadTag        Code = 1003
	LoadUnknownSpec   Code = 1004
	LoadBadTerm       Code = 1005
	LoadDuplicateName Code = 1006
	LoadBadType       Code = 1007

	// Statement flattening
	FlatInfo          Code = 2000
	FlatEmptySeqBlock Code = 2001
	FlatBadSeq        Code = 2002
	FlatBadReturn     Code = 2003
	FlatArity         Code = 2004
	FlatUnflattened   Code = 2005

	// Control-flow graph construction and validation
	CFGInfo        Code = 3000
	CFGInvalid     Code = 3001
	CFGBadPhi      Code = 3002
	CFGUnreachable Code = 3003

	// Quotient deduction
	QuotInfo          Code = 4000
	QuotConflict      Code = 4001
	QuotUndetermined  Code = 4002
	QuotInvariant     Code = 4003
	QuotTimelineMerge Code = 4004
	QuotUnknownNode   Code = 4005

	// Driver and cache
	DrvInfo       Code = 5000
	DrvCacheRead  Code = 5001
	DrvCacheWrite Code = 5002
	DrvCanceled   Code = 5003
)

var (
	codeDescription = map[Code]string{
		UnknownCode:       "Unknown error",
		LoadInfo:          "Program loading information",
		LoadInvalidYAML:   "Malformed program document",
		LoadUnknownStmt:   "Unknown statement kind",
		LoadBadTag:        "Malformed quotient tag",
		LoadUnknownSpec:   "Reference to an unknown spec funclet",
		LoadBadTerm:       "Malformed spec node term",
		LoadDuplicateName: "Duplicate definition",
		LoadBadType:       "Unknown variable type",
		FlatInfo:          "Flattening information",
		FlatEmptySeqBlock: "Empty block assigned to variables",
		FlatBadSeq:        "Sequence statement is neither a block nor an if",
		FlatBadReturn:     "Returned values do not match the destinations",
		FlatArity:         "Expression yields fewer values than bound variables",
		FlatUnflattened:   "Nested block left after flattening",
		CFGInfo:           "Control-flow information",
		CFGInvalid:        "Malformed control-flow graph",
		CFGBadPhi:         "Join instruction disagrees with predecessors",
		CFGUnreachable:    "Unreachable block",
		QuotInfo:          "Quotient deduction information",
		QuotConflict:      "Conflicting quotient constraints",
		QuotUndetermined:  "Quotient could not be deduced",
		QuotInvariant:     "Internal invariant violated during deduction",
		QuotTimelineMerge: "Timeline events disagree at merge point",
		QuotUnknownNode:   "Annotation names an unknown spec node",
		DrvInfo:           "Driver information",
		DrvCacheRead:      "Result cache could not be read",
		DrvCacheWrite:     "Result cache could not be written",
		DrvCanceled:       "Compilation canceled",
	}
)

// ID is the stable short form printed next to messages, e.g. QUO4001.
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LOD%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("FLT%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("QUO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("DRV%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
