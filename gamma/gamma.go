// Package gamma builds brightness/gamma correction tables mapping 8-bit
// channel input to bit_depth output, plus fixed point fraction for temporal dithering.
//
// Tables are pure function of (mode, brightness, bit depth, custom values)
// and must be rebuilt only when one of those changes, see Cache.
package gamma

import (
	"fmt"
	"math"
	"strings"

	"github.com/juju/errors"
)

const (
	TableSize = 256
	MaxDepth  = 16

	// DitherShift is number of fractional bits kept for dithering.
	DitherShift = 8
	ditherMask  = 1<<DitherShift - 1
)

// CIE1931 mode uses this power approximation of perceived lightness.
const cieExponent = 2.5

var ErrInvalidTable = errors.New("invalid custom gamma table")

// Mode is closed set of gamma correction kinds.
type Mode uint8

const (
	Linear Mode = iota
	CIE1931
	Custom
)

func (m Mode) String() string {
	switch m {
	case Linear:
		return "linear"
	case CIE1931:
		return "cie1931"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("gamma.Mode(%d)", uint8(m))
}

func (m Mode) Valid() bool { return m <= Custom }

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "none":
		return Linear, nil
	case "cie1931", "cie":
		return CIE1931, nil
	case "custom":
		return Custom, nil
	}
	return Linear, errors.NotValidf("gamma mode=%q", s)
}

type Table struct {
	mode       Mode
	brightness uint8
	bitDepth   int
	max        uint16
	out        [TableSize]uint16
	fixed      [TableSize]uint32
}

// Build computes table for given parameters.
// Linear: round(in/255 * brightness/255 * max).
// CIE1931: round((in/255)^2.5 * brightness/255 * max).
// Custom: custom[in] * brightness/255, custom values are in output units and clamped to max.
// max = 2^bitDepth - 1.
func Build(mode Mode, brightness uint8, bitDepth int, custom []uint16) (*Table, error) {
	if bitDepth < 1 || bitDepth > MaxDepth {
		return nil, errors.NotValidf("gamma bit depth=%d", bitDepth)
	}
	t := &Table{
		mode:       mode,
		brightness: brightness,
		bitDepth:   bitDepth,
		max:        uint16(1<<uint(bitDepth) - 1),
	}
	scale := float64(brightness) / 255
	max := float64(t.max)

	var curve func(i int) float64
	switch mode {
	case Linear:
		curve = func(i int) float64 { return float64(i) / 255 * max }
	case CIE1931:
		curve = func(i int) float64 { return math.Pow(float64(i)/255, cieExponent) * max }
	case Custom:
		if len(custom) != TableSize {
			return nil, errors.Annotatef(ErrInvalidTable, "length=%d expected=%d", len(custom), TableSize)
		}
		curve = func(i int) float64 { return math.Min(float64(custom[i]), max) }
	default:
		return nil, errors.NotValidf("gamma mode=%s", mode.String())
	}

	for i := 0; i < TableSize; i++ {
		exact := math.Min(curve(i)*scale, max)
		t.out[i] = uint16(math.Round(exact))
		t.fixed[i] = uint32(math.Round(exact * (1 << DitherShift)))
		if limit := uint32(t.max) << DitherShift; t.fixed[i] > limit {
			t.fixed[i] = limit
		}
	}
	return t, nil
}

func (t *Table) Mode() Mode            { return t.mode }
func (t *Table) Brightness() uint8     { return t.brightness }
func (t *Table) BitDepth() int         { return t.bitDepth }
func (t *Table) Max() uint16           { return t.max }
func (t *Table) Lookup(v uint8) uint16 { return t.out[v] }

// Fixed returns corrected value with DitherShift fractional bits.
func (t *Table) Fixed(v uint8) uint32 { return t.fixed[v] }

// Values returns copy of output table.
func (t *Table) Values() []uint16 {
	vs := make([]uint16, TableSize)
	copy(vs, t.out[:])
	return vs
}

func (t *Table) same(mode Mode, brightness uint8, bitDepth int) bool {
	return t != nil && t.mode == mode && t.brightness == brightness && t.bitDepth == bitDepth
}
