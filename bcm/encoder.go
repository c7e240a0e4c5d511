package bcm

import (
	"github.com/juju/errors"
	"github.com/temoto/hub75/gamma"
	"github.com/temoto/hub75/panel"
	"github.com/temoto/hub75/pixel"
)

// Encoder converts frames into Set data bits. Not safe for concurrent use.
type Encoder struct {
	geom    panel.Geometry
	scratch []uint16 // corrected channels of one scan row: 6 per column
	seq     uint64
}

func NewEncoder(g panel.Geometry) *Encoder {
	return &Encoder{
		geom:    g,
		scratch: make([]uint16, g.VirtualWidth*6),
	}
}

// Encode writes frame into dst. Row r of dst carries frame rows r and r+RowsPerScan.
// dither may be nil.
// On error dst content is unspecified and must not be published.
func (self *Encoder) Encode(frame *pixel.Frame, table *gamma.Table, dither *gamma.Dither, dst *Set) error {
	g := self.geom
	if frame.Width != g.VirtualWidth || frame.Height != g.Height || len(frame.Pix) < g.Pixels()*3 {
		return errors.NotValidf("frame %dx%d for geometry %dx%d", frame.Width, frame.Height, g.VirtualWidth, g.Height)
	}
	if table == nil || table.BitDepth() != g.PlaneCount {
		return errors.NotValidf("gamma table for bit depth=%d", g.PlaneCount)
	}
	if dither != nil && dither.Len() != g.Pixels()*3 {
		return errors.NotValidf("dither state length=%d expected=%d", dither.Len(), g.Pixels()*3)
	}
	if dst.geom != g {
		return errors.NotValidf("buffer set geometry")
	}

	vw := g.VirtualWidth
	half := g.RowsPerScan * vw * 3
	c := self.scratch
	for row := 0; row < g.RowsPerScan; row++ {
		upper := row * vw * 3
		for i := 0; i < vw*3; i++ {
			// scratch per column: R1 G1 B1 R2 G2 B2
			x, ch := i/3, i%3
			c[x*6+ch] = self.correct(frame.Pix, table, dither, upper+i)
			c[x*6+3+ch] = self.correct(frame.Pix, table, dither, upper+half+i)
		}

		for p := 0; p < g.PlaneCount; p++ {
			words := dst.Unit(row, p).Words
			for x := range words {
				cx := c[x*6 : x*6+6 : x*6+6]
				words[x] = words[x]&^MaskRGB |
					(cx[0]>>uint(p)&1)<<BitR1 |
					(cx[1]>>uint(p)&1)<<BitG1 |
					(cx[2]>>uint(p)&1)<<BitB1 |
					(cx[3]>>uint(p)&1)<<BitR2 |
					(cx[4]>>uint(p)&1)<<BitG2 |
					(cx[5]>>uint(p)&1)<<BitB2
			}
		}
	}
	self.seq++
	dst.frame = self.seq
	return nil
}

func (self *Encoder) correct(pix []uint8, table *gamma.Table, dither *gamma.Dither, i int) uint16 {
	if dither != nil {
		return dither.Quantize(table, i, pix[i])
	}
	return table.Lookup(pix[i])
}

// Encoded returns number of frames encoded so far.
func (self *Encoder) Encoded() uint64 { return self.seq }
