package panel

import (
	"math"
	"math/bits"
	"time"

	"github.com/juju/errors"
	"periph.io/x/periph/conn/physic"
)

var (
	ErrInvalidDimensions      = errors.New("invalid dimensions")
	ErrUnsupportedScanPattern = errors.New("unsupported scan pattern")
	ErrMissingAddressLine     = errors.New("missing address line")
	ErrExtraAddressLine       = errors.New("address line assigned but not used by scan pattern")
	ErrMissingPin             = errors.New("missing pin")
	ErrDuplicatePin           = errors.New("duplicate pin")
	ErrInvalidBitDepth        = errors.New("invalid bit depth")
	ErrInvalidTiming          = errors.New("invalid timing")
)

var addressNames = [...]string{"a", "b", "c", "d", "e", "f"}

// Geometry is derived from validated Config and never changes while driver runs.
type Geometry struct {
	PanelWidth   int
	Height       int
	Segments     int // chain length
	RowsPerScan  int
	VirtualWidth int
	PlaneCount   int
	AddressBits  int
	// Blank is LatchBlanking copied from config.
	Blank int
}

// Pixels is number of logical pixels, VirtualWidth * Height.
func (g Geometry) Pixels() int { return g.VirtualWidth * g.Height }

// Validate checks c in fixed order and returns first violation.
// Returned error Cause is one of Err* kinds of this package.
func (c *Config) Validate() (Geometry, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return Geometry{}, errors.Annotatef(ErrInvalidDimensions, "width=%d height=%d", c.Width, c.Height)
	}
	if c.ChainLength < 1 || c.ChainLength > MaxChainLength {
		return Geometry{}, errors.Annotatef(ErrInvalidDimensions, "chain_length=%d must be in 1..%d", c.ChainLength, MaxChainLength)
	}
	if !c.Scan.Supported() {
		return Geometry{}, errors.Annotatef(ErrUnsupportedScanPattern, "scan=%s", c.Scan)
	}
	if c.Height != 2*c.Scan.Divisor() {
		return Geometry{}, errors.Annotatef(ErrInvalidDimensions, "height=%d scan=%s expected height=%d", c.Height, c.Scan, 2*c.Scan.Divisor())
	}

	need := c.Scan.AddressBits()
	addr := c.Pins.Address()
	for bit := 0; bit < need; bit++ {
		if bit >= AddressLines {
			return Geometry{}, errors.Annotatef(ErrMissingAddressLine, "scan=%s needs line=%s, connector has a..e", c.Scan, addressNames[bit])
		}
		if addr[bit] == PinUnused {
			return Geometry{}, errors.Annotatef(ErrMissingAddressLine, "scan=%s needs line=%s", c.Scan, addressNames[bit])
		}
	}
	for bit := need; bit < AddressLines; bit++ {
		if addr[bit] != PinUnused {
			return Geometry{}, errors.Annotatef(ErrExtraAddressLine, "scan=%s line=%s pin=%d", c.Scan, addressNames[bit], addr[bit])
		}
	}
	for _, s := range c.Pins.Signals() {
		if isAddress(s.Name) {
			continue
		}
		if s.Pin == PinUnused {
			return Geometry{}, errors.Annotatef(ErrMissingPin, "signal=%s", s.Name)
		}
	}
	seen := make(map[int]string, 14)
	for _, s := range c.Pins.Assigned() {
		if s.Pin < 0 {
			return Geometry{}, errors.Annotatef(ErrMissingPin, "signal=%s pin=%d", s.Name, s.Pin)
		}
		if prev, ok := seen[s.Pin]; ok {
			return Geometry{}, errors.Annotatef(ErrDuplicatePin, "pin=%d signals=%s,%s", s.Pin, prev, s.Name)
		}
		seen[s.Pin] = s.Name
	}

	if c.BitDepth < 1 || c.BitDepth > MaxBitDepth {
		return Geometry{}, errors.Annotatef(ErrInvalidBitDepth, "bit_depth=%d must be in 1..%d", c.BitDepth, MaxBitDepth)
	}
	if c.OutputClock <= 0 {
		return Geometry{}, errors.Annotatef(ErrInvalidTiming, "clock=%s", c.OutputClock)
	}
	if c.MinRefresh <= 0 {
		return Geometry{}, errors.Annotatef(ErrInvalidTiming, "min_refresh=%s", c.MinRefresh)
	}

	g := Geometry{
		PanelWidth:   c.Width,
		Height:       c.Height,
		Segments:     c.ChainLength,
		RowsPerScan:  c.Scan.Divisor(),
		VirtualWidth: c.Width * c.ChainLength,
		PlaneCount:   c.BitDepth,
		AddressBits:  need,
		Blank:        c.LatchBlanking,
	}
	// blanked: first Blank columns and last Blank+1, at least one column must drive
	if c.LatchBlanking < 0 || 2*c.LatchBlanking+1 >= g.VirtualWidth {
		return Geometry{}, errors.Annotatef(ErrInvalidTiming, "latch_blanking=%d virtual_width=%d", c.LatchBlanking, g.VirtualWidth)
	}
	return g, nil
}

func isAddress(name string) bool {
	for _, a := range addressNames[:AddressLines] {
		if name == a {
			return true
		}
	}
	return false
}

// Timing of BCM transmission derived from geometry and output clock.
type Timing struct {
	// Unit is time to shift one row of one plane, VirtualWidth clock periods.
	// Plane p is displayed for Unit << p.
	Unit time.Duration
	// Row is sum of all plane durations, Unit * (2^depth - 1).
	Row time.Duration
	// Frame is exact FrameCycles at clock rounded up to nanosecond,
	// not rounded Unit multiplied.
	Frame time.Duration
}

// FrameCycles is output clock periods per frame, rows * (2^depth - 1) * VirtualWidth.
func (g Geometry) FrameCycles() uint64 {
	return uint64(g.RowsPerScan) * (1<<uint(g.PlaneCount) - 1) * uint64(g.VirtualWidth)
}

// Attainable reports whether one frame at clock fits into 1/minRefresh.
// Compares FrameCycles*minRefresh <= clock in integer micro hertz, no rounding.
func (g Geometry) Attainable(clock, minRefresh physic.Frequency) bool {
	if clock <= 0 {
		return false
	}
	if minRefresh <= 0 {
		return true
	}
	hi, lo := bits.Mul64(g.FrameCycles(), uint64(minRefresh))
	return hi == 0 && lo <= uint64(clock)
}

func (g Geometry) Timing(clock physic.Frequency) Timing {
	if clock <= 0 {
		return Timing{}
	}
	unit := cyclesDuration(uint64(g.VirtualWidth), clock)
	if unit <= 0 {
		unit = 1
	}
	return Timing{
		Unit:  unit,
		Row:   unit * time.Duration(1<<uint(g.PlaneCount)-1),
		Frame: cyclesDuration(g.FrameCycles(), clock),
	}
}

// cyclesDuration is n clock periods rounded up to whole nanosecond,
// so derived refresh rate never exceeds exact one.
func cyclesDuration(n uint64, clock physic.Frequency) time.Duration {
	const nsMicroHz = uint64(time.Second) * uint64(physic.Hertz)
	c := uint64(clock)
	hi, lo := bits.Mul64(n, nsMicroHz)
	if hi >= c {
		return time.Duration(math.MaxInt64)
	}
	q, rem := bits.Div64(hi, lo, c)
	if rem != 0 {
		q++
	}
	if q > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(q)
}

// Plane returns display duration of bit-plane p.
func (t Timing) Plane(p int) time.Duration { return t.Unit << uint(p) }

// RefreshRate is frames per second achievable with this timing.
func (t Timing) RefreshRate() float64 {
	if t.Frame <= 0 {
		return 0
	}
	return float64(time.Second) / float64(t.Frame)
}
