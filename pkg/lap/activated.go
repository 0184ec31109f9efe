package lap

import "math/bits"

// idSet is a bitset of checkpoint ids in [0,size).
type idSet struct {
	words []uint64
	size  int
	count int
}

func newIDSet(size int) idSet {
	return idSet{words: make([]uint64, (size+63)/64), size: size}
}

func (s *idSet) Add(id int) bool {
	if id < 0 || id >= s.size {
		return false
	}
	w, b := id/64, uint(id%64)
	if s.words[w]&(1<<b) != 0 {
		return false
	}
	s.words[w] |= 1 << b
	s.count++
	return true
}

func (s *idSet) Has(id int) bool {
	if id < 0 || id >= s.size {
		return false
	}
	return s.words[id/64]&(1<<uint(id%64)) != 0
}

func (s *idSet) Len() int {
	return s.count
}

func (s *idSet) Clear() {
	clear(s.words)
	s.count = 0
}

// IDs returns the members in ascending order.
func (s *idSet) IDs() []int {
	ret := make([]int, 0, s.count)
	for w, word := range s.words {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			ret = append(ret, w*64+b)
			word &= word - 1
		}
	}
	return ret
}
