package bcm

import (
	"time"

	"github.com/temoto/hub75/panel"
)

// Unit is one transmission: shift Words, latch, display for Duration.
type Unit struct {
	Row      int
	Plane    int
	Address  uint8
	Duration time.Duration
	// Words has one entry per virtual column, chain segment i is Words[i*PanelWidth:(i+1)*PanelWidth].
	Words []uint16

	panelWidth int
}

func (u *Unit) Segments() int { return len(u.Words) / u.panelWidth }

func (u *Unit) Segment(i int) []uint16 {
	return u.Words[i*u.panelWidth : (i+1)*u.panelWidth]
}

// Set is complete BCM buffer for one frame: RowsPerScan x PlaneCount units.
type Set struct {
	geom   panel.Geometry
	timing panel.Timing
	order  []int
	words  []uint16
	units  []Unit
	frame  uint64
}

// NewSet allocates buffer and fills static control bits: address, latch, blanking.
func NewSet(g panel.Geometry, t panel.Timing, order panel.PlaneOrder) *Set {
	vw := g.VirtualWidth
	n := g.RowsPerScan * g.PlaneCount
	s := &Set{
		geom:   g,
		timing: t,
		order:  PlaneSequence(order, g.PlaneCount),
		words:  make([]uint16, n*vw),
		units:  make([]Unit, n),
	}
	for row := 0; row < g.RowsPerScan; row++ {
		for p := 0; p < g.PlaneCount; p++ {
			i := row*g.PlaneCount + p
			u := &s.units[i]
			u.Row = row
			u.Plane = p
			u.Address = uint8(row)
			u.Duration = t.Plane(p)
			u.Words = s.words[i*vw : (i+1)*vw : (i+1)*vw]
			u.panelWidth = g.PanelWidth
			for x := range u.Words {
				u.Words[x] = controlWord(g, row, x)
			}
		}
	}
	return s
}

func controlWord(g panel.Geometry, row, x int) uint16 {
	last := g.VirtualWidth - 1
	w := uint16(row) << AddrShift & MaskAddr
	if x == last {
		w |= MaskLAT
	}
	if x < g.Blank || x >= last-g.Blank {
		w |= MaskOE
	}
	return w
}

func (s *Set) Geometry() panel.Geometry { return s.geom }
func (s *Set) Timing() panel.Timing     { return s.timing }

// Order is plane transmission sequence, same for every row and every frame.
func (s *Set) Order() []int { return s.order }

func (s *Set) Len() int { return len(s.units) }

func (s *Set) Unit(row, plane int) *Unit { return &s.units[row*s.geom.PlaneCount+plane] }

// Frame is sequence number of last encoded frame, 0 before first encode.
func (s *Set) Frame() uint64 { return s.frame }

// Each calls f for every unit in transmission order, stops on first error.
func (s *Set) Each(f func(u *Unit) error) error {
	for row := 0; row < s.geom.RowsPerScan; row++ {
		for _, p := range s.order {
			if err := f(s.Unit(row, p)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear zeroes data bits, keeps control bits.
func (s *Set) Clear() {
	for i := range s.words {
		s.words[i] &^= MaskRGB
	}
	s.frame = 0
}
