// Package panel describes HUB75 panel configuration and validates it into scan geometry.
package panel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/hub75/gamma"
	"periph.io/x/periph/conn/physic"
)

const (
	MaxChainLength = 8
	MaxBitDepth    = gamma.MaxDepth
	// AddressLines is number of address signals HUB75 connector carries (A..E).
	AddressLines = 5

	PinUnused = -1
)

// ScanPattern 1/N is closed set, N = rows driven per address.
type ScanPattern uint8

const (
	Scan4  ScanPattern = 4
	Scan8  ScanPattern = 8
	Scan16 ScanPattern = 16
	Scan32 ScanPattern = 32
	Scan64 ScanPattern = 64
)

var scanPatterns = []ScanPattern{Scan4, Scan8, Scan16, Scan32, Scan64}

func (s ScanPattern) Supported() bool {
	for _, p := range scanPatterns {
		if s == p {
			return true
		}
	}
	return false
}

func (s ScanPattern) Divisor() int { return int(s) }

// AddressBits returns ceil(log2(divisor)).
func (s ScanPattern) AddressBits() int {
	n := 0
	for 1<<uint(n) < int(s) {
		n++
	}
	return n
}

func (s ScanPattern) String() string { return fmt.Sprintf("1/%d", uint8(s)) }

// ParseScanPattern accepts "1/16" or "16".
func ParseScanPattern(s string) (ScanPattern, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "1/")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errors.Annotatef(ErrUnsupportedScanPattern, "scan=%q", s)
	}
	p := ScanPattern(n)
	if !p.Supported() {
		return 0, errors.Annotatef(ErrUnsupportedScanPattern, "scan=%s", p)
	}
	return p, nil
}

// PlaneOrder is policy of bit-plane transmission order within a row.
type PlaneOrder uint8

const (
	// LSBFirst sends planes 0,1,...,depth-1.
	LSBFirst PlaneOrder = iota
	// Interleaved alternates from both ends: depth-1,0,depth-2,1,...
	// Spreads long planes over the row period.
	Interleaved
)

func (o PlaneOrder) String() string {
	switch o {
	case LSBFirst:
		return "lsb"
	case Interleaved:
		return "interleaved"
	}
	return fmt.Sprintf("panel.PlaneOrder(%d)", uint8(o))
}

func ParsePlaneOrder(s string) (PlaneOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lsb", "lsb-first":
		return LSBFirst, nil
	case "interleaved":
		return Interleaved, nil
	}
	return LSBFirst, errors.NotValidf("plane order=%q", s)
}

// Pins maps 14 HUB75 signals to GPIO numbers, PinUnused (-1) for not connected.
type Pins struct {
	R1  int `hcl:"r1"`
	G1  int `hcl:"g1"`
	B1  int `hcl:"b1"`
	R2  int `hcl:"r2"`
	G2  int `hcl:"g2"`
	B2  int `hcl:"b2"`
	A   int `hcl:"a"`
	B   int `hcl:"b"`
	C   int `hcl:"c"`
	D   int `hcl:"d"`
	E   int `hcl:"e"`
	LAT int `hcl:"lat"`
	OE  int `hcl:"oe"`
	CLK int `hcl:"clk"`
}

type Signal struct {
	Name string
	Pin  int
}

func UnusedPins() Pins {
	return Pins{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
}

// Signals lists all 14 signals in connector order.
func (p Pins) Signals() []Signal {
	return []Signal{
		{"r1", p.R1}, {"g1", p.G1}, {"b1", p.B1},
		{"r2", p.R2}, {"g2", p.G2}, {"b2", p.B2},
		{"a", p.A}, {"b", p.B}, {"c", p.C}, {"d", p.D}, {"e", p.E},
		{"lat", p.LAT}, {"oe", p.OE}, {"clk", p.CLK},
	}
}

// Address returns A..E pins, index is address bit.
func (p Pins) Address() [AddressLines]int { return [AddressLines]int{p.A, p.B, p.C, p.D, p.E} }

// Assigned returns signals with pin != PinUnused.
func (p Pins) Assigned() []Signal {
	all := p.Signals()
	ss := make([]Signal, 0, len(all))
	for _, s := range all {
		if s.Pin != PinUnused {
			ss = append(ss, s)
		}
	}
	return ss
}

type Config struct {
	Width       int
	Height      int
	ChainLength int
	Scan        ScanPattern
	Pins        Pins

	OutputClock physic.Frequency
	MinRefresh  physic.Frequency
	BitDepth    int
	PlaneOrder  PlaneOrder

	DoubleBuffer   bool
	TemporalDither bool

	Gamma       gamma.Mode
	CustomGamma []uint16
	Brightness  uint8

	// LatchBlanking is number of columns with output disabled around latch pulse.
	LatchBlanking      int
	ClockPhaseInverted bool
}

// Default is single 64x32 panel, 1/16 scan, 8 bit CIE1931 at 20MHz. Pins must be assigned by caller.
func Default() Config {
	return Config{
		Width:         64,
		Height:        32,
		ChainLength:   1,
		Scan:          Scan16,
		Pins:          UnusedPins(),
		OutputClock:   20 * physic.MegaHertz,
		MinRefresh:    60 * physic.Hertz,
		BitDepth:      8,
		PlaneOrder:    LSBFirst,
		DoubleBuffer:  true,
		Gamma:         gamma.CIE1931,
		Brightness:    255,
		LatchBlanking: 1,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("panel %dx%d chain=%d scan=%s depth=%d clock=%s gamma=%s brightness=%d",
		c.Width, c.Height, c.ChainLength, c.Scan, c.BitDepth, c.OutputClock, c.Gamma, c.Brightness)
}
