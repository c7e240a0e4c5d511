package bcm

import "github.com/temoto/hub75/panel"

// PlaneSequence returns transmission order of depth planes for given policy.
func PlaneSequence(order panel.PlaneOrder, depth int) []int {
	seq := make([]int, 0, depth)
	switch order {
	case panel.Interleaved:
		lo, hi := 0, depth-1
		for lo <= hi {
			seq = append(seq, hi)
			if lo != hi {
				seq = append(seq, lo)
			}
			lo++
			hi--
		}
	default:
		for p := 0; p < depth; p++ {
			seq = append(seq, p)
		}
	}
	return seq
}
