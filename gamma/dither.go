package gamma

// Dither carries quantization remainder per pixel channel across frames.
// Each frame adds previous remainder to fixed point value before truncation,
// so over 1<<DitherShift frames average output approaches exact corrected value.
//
// Not safe for concurrent use, owned by single encoder.
type Dither struct {
	carry []uint8
}

// NewDither allocates state for n channel values, usually width*height*3.
func NewDither(n int) *Dither {
	return &Dither{carry: make([]uint8, n)}
}

func (self *Dither) Len() int { return len(self.carry) }

func (self *Dither) Reset() {
	for i := range self.carry {
		self.carry[i] = 0
	}
}

// Quantize returns dithered output for channel value v at state index i.
func (self *Dither) Quantize(t *Table, i int, v uint8) uint16 {
	x := t.fixed[v] + uint32(self.carry[i])
	self.carry[i] = uint8(x & ditherMask)
	return uint16(x >> DitherShift)
}
