package hir

import (
	"fmt"
	"strings"
)

// Quotient says how a schedule variable relates to its spec node.
type Quotient uint8

const (
	QuotUnknown Quotient = iota
	QuotNode
	QuotInput
	QuotNone
)

func (q Quotient) String() string {
	switch q {
	case QuotNode:
		return "node"
	case QuotInput:
		return "input"
	case QuotNone:
		return "none"
	default:
		return "?"
	}
}

// Flow is the lifecycle state of a variable's value.
type Flow uint8

const (
	FlowUnknown Flow = iota
	FlowUsable
	FlowSave
	FlowDead
	FlowNeed
)

func (f Flow) String() string {
	switch f {
	case FlowUsable:
		return "usable"
	case FlowSave:
		return "save"
	case FlowDead:
		return "dead"
	case FlowNeed:
		return "need"
	default:
		return ""
	}
}

// Sort is one of the three spec dimensions.
type Sort uint8

const (
	SortValue Sort = iota
	SortTimeline
	SortSpatial
)

// Sorts lists every sort in deduction order.
var Sorts = [...]Sort{SortValue, SortTimeline, SortSpatial}

func (s Sort) String() string {
	switch s {
	case SortValue:
		return "value"
	case SortTimeline:
		return "timeline"
	case SortSpatial:
		return "spatial"
	default:
		return "unknown"
	}
}

// ParseSort converts "value", "timeline" or "spatial".
func ParseSort(s string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "value", "val":
		return SortValue, nil
	case "timeline", "tmln":
		return SortTimeline, nil
	case "spatial", "sptl":
		return SortSpatial, nil
	default:
		return SortValue, fmt.Errorf("unknown sort %q", s)
	}
}

// Tag is the per-sort annotation of a variable. The zero value is fully
// unspecified.
type Tag struct {
	Quot Quotient
	Node string // spec node name, empty when unknown
	Flow Flow
}

// Specified reports whether any field carries information.
func (t Tag) Specified() bool {
	return t.Quot != QuotUnknown || t.Node != "" || t.Flow != FlowUnknown
}

func (t Tag) String() string {
	if !t.Specified() {
		return "?"
	}
	var sb strings.Builder
	sb.WriteString(t.Quot.String())
	if t.Node != "" {
		sb.WriteString("(")
		sb.WriteString(t.Node)
		sb.WriteString(")")
	}
	if t.Flow != FlowUnknown {
		sb.WriteString("-")
		sb.WriteString(t.Flow.String())
	}
	return sb.String()
}

// ParseTag reads "node(x)", "input(x)", "none", "node", optionally followed
// by "-usable", "-save", "-dead" or "-need". A bare "?" is the empty tag.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "?" {
		return Tag{}, nil
	}
	var t Tag
	body := s
	if i := strings.LastIndexByte(s, '-'); i > 0 && !strings.Contains(s[i:], ")") {
		switch s[i+1:] {
		case "usable":
			t.Flow = FlowUsable
		case "save":
			t.Flow = FlowSave
		case "dead":
			t.Flow = FlowDead
		case "need":
			t.Flow = FlowNeed
		default:
			return Tag{}, fmt.Errorf("unknown flow %q in tag %q", s[i+1:], s)
		}
		body = s[:i]
	}
	kind, node := body, ""
	if open := strings.IndexByte(body, '('); open >= 0 {
		if !strings.HasSuffix(body, ")") {
			return Tag{}, fmt.Errorf("unterminated tag %q", s)
		}
		kind = body[:open]
		node = strings.TrimSpace(body[open+1 : len(body)-1])
		if node == "" {
			return Tag{}, fmt.Errorf("empty node in tag %q", s)
		}
	}
	switch kind {
	case "node":
		t.Quot = QuotNode
	case "input":
		t.Quot = QuotInput
	case "none":
		if node != "" {
			return Tag{}, fmt.Errorf("tag %q: none takes no node", s)
		}
		t.Quot = QuotNone
	case "", "?":
		// flow only
	default:
		return Tag{}, fmt.Errorf("unknown quotient %q in tag %q", kind, s)
	}
	t.Node = node
	return t, nil
}

// TripleTag holds one tag per sort.
type TripleTag struct {
	Value    Tag
	Timeline Tag
	Spatial  Tag
}

// Get returns a pointer to the tag of sort s.
func (t *TripleTag) Get(s Sort) *Tag {
	switch s {
	case SortTimeline:
		return &t.Timeline
	case SortSpatial:
		return &t.Spatial
	default:
		return &t.Value
	}
}

// At returns the tag of sort s.
func (t TripleTag) At(s Sort) Tag {
	return *t.Get(s)
}

// Specified reports whether any sort carries information.
func (t TripleTag) Specified() bool {
	return t.Value.Specified() || t.Timeline.Specified() || t.Spatial.Specified()
}

// Override copies every specified field of o onto t.
func (t *TripleTag) Override(o TripleTag) {
	for _, s := range Sorts {
		src, dst := o.Get(s), t.Get(s)
		if src.Quot != QuotUnknown {
			dst.Quot = src.Quot
		}
		if src.Node != "" {
			dst.Node = src.Node
		}
		if src.Flow != FlowUnknown {
			dst.Flow = src.Flow
		}
	}
}

func (t TripleTag) String() string {
	return "{val " + t.Value.String() + ", tmln " + t.Timeline.String() + ", sptl " + t.Spatial.String() + "}"
}
