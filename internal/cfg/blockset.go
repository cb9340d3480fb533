package cfg

import (
	"math/bits"
	"strings"

	"hlsched/internal/hir"
)

// BlockSet is a bitmap over block ids.
type BlockSet struct {
	w []uint64
}

// NewBlockSet returns an empty set sized for n blocks.
func NewBlockSet(n int) BlockSet {
	return BlockSet{w: make([]uint64, (n+63)/64)}
}

// FullBlockSet returns the set {0, ..., n-1}.
func FullBlockSet(n int) BlockSet {
	s := NewBlockSet(n)
	for i := 0; i < n; i++ {
		s.Add(hir.BlockID(i)) //nolint:gosec // G115: bounded by n
	}
	return s
}

func (s *BlockSet) grow(i int) {
	if i < len(s.w) {
		return
	}
	w := make([]uint64, i+1)
	copy(w, s.w)
	s.w = w
}

func (s *BlockSet) Add(id hir.BlockID) {
	if id < 0 {
		return
	}
	i, j := int(id)/64, uint(id)%64
	s.grow(i)
	s.w[i] |= 1 << j
}

func (s *BlockSet) Remove(id hir.BlockID) {
	if id < 0 {
		return
	}
	i, j := int(id)/64, uint(id)%64
	if i < len(s.w) {
		s.w[i] &^= 1 << j
	}
}

func (s BlockSet) Has(id hir.BlockID) bool {
	if id < 0 {
		return false
	}
	i, j := int(id)/64, uint(id)%64
	return i < len(s.w) && s.w[i]&(1<<j) != 0
}

func (s BlockSet) Len() int {
	n := 0
	for _, w := range s.w {
		n += bits.OnesCount64(w)
	}
	return n
}

func (s BlockSet) Clone() BlockSet {
	return BlockSet{w: append([]uint64(nil), s.w...)}
}

// Union adds every member of o and reports whether s changed.
func (s *BlockSet) Union(o BlockSet) bool {
	s.grow(len(o.w) - 1)
	changed := false
	for i, w := range o.w {
		if s.w[i]|w != s.w[i] {
			s.w[i] |= w
			changed = true
		}
	}
	return changed
}

// Intersect keeps only members of o and reports whether s changed.
func (s *BlockSet) Intersect(o BlockSet) bool {
	changed := false
	for i := range s.w {
		var w uint64
		if i < len(o.w) {
			w = o.w[i]
		}
		if s.w[i]&w != s.w[i] {
			s.w[i] &= w
			changed = true
		}
	}
	return changed
}

func (s BlockSet) Equal(o BlockSet) bool {
	n := max(len(s.w), len(o.w))
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.w) {
			a = s.w[i]
		}
		if i < len(o.w) {
			b = o.w[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// IDs lists the members in ascending order.
func (s BlockSet) IDs() []hir.BlockID {
	res := make([]hir.BlockID, 0, s.Len())
	for i, w := range s.w {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			res = append(res, hir.BlockID(i*64+j)) //nolint:gosec // G115: bit index within set size
			w &^= 1 << uint(j)
		}
	}
	return res
}

func (s BlockSet) String() string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
