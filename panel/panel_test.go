package panel

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/physic"
)

// validConfig returns config for width x 2*scan panel with address lines assigned as scan needs.
func validConfig(width int, scan ScanPattern) Config {
	c := Default()
	c.Width = width
	c.Height = 2 * scan.Divisor()
	c.Scan = scan
	c.Pins = Pins{R1: 5, G1: 13, B1: 6, R2: 12, G2: 16, B2: 23, A: 22, B: 26, C: 27, D: 20, E: 24, LAT: 21, OE: 4, CLK: 17}
	addr := []*int{&c.Pins.A, &c.Pins.B, &c.Pins.C, &c.Pins.D, &c.Pins.E}
	for i := scan.AddressBits(); i < len(addr); i++ {
		*addr[i] = PinUnused
	}
	return c
}

func TestValidateAddressLines(t *testing.T) {
	t.Parallel()

	for _, scan := range []ScanPattern{Scan4, Scan8, Scan16, Scan32} {
		c := validConfig(64, scan)
		g, err := c.Validate()
		require.NoError(t, err, scan.String())
		assert.Equal(t, scan.AddressBits(), g.AddressBits)
		assert.Equal(t, scan.Divisor(), g.RowsPerScan)
		used := 0
		for _, pin := range c.Pins.Address() {
			if pin != PinUnused {
				used++
			}
		}
		assert.Equal(t, g.AddressBits, used, scan.String())
	}
	assert.Equal(t, 2, Scan4.AddressBits())
	assert.Equal(t, 5, Scan32.AddressBits())
	assert.Equal(t, 6, Scan64.AddressBits())
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		mod    func(c *Config)
		expect error
	}
	cases := []Case{
		{"64x64 scan32 no E", func(c *Config) { *c = validConfig(64, Scan32); c.Pins.E = PinUnused }, ErrMissingAddressLine},
		{"zero width", func(c *Config) { c.Width = 0 }, ErrInvalidDimensions},
		{"negative height", func(c *Config) { c.Height = -32 }, ErrInvalidDimensions},
		{"chain zero", func(c *Config) { c.ChainLength = 0 }, ErrInvalidDimensions},
		{"chain too long", func(c *Config) { c.ChainLength = MaxChainLength + 1 }, ErrInvalidDimensions},
		{"height mismatch", func(c *Config) { c.Height = 64 }, ErrInvalidDimensions},
		{"scan 1/2", func(c *Config) { c.Scan = ScanPattern(2) }, ErrUnsupportedScanPattern},
		{"scan zero", func(c *Config) { c.Scan = 0 }, ErrUnsupportedScanPattern},
		{"scan64 six lines", func(c *Config) { *c = validConfig(64, Scan64) }, ErrMissingAddressLine},
		{"extra E for 1/16", func(c *Config) { c.Pins.E = 24 }, ErrExtraAddressLine},
		{"no clk", func(c *Config) { c.Pins.CLK = PinUnused }, ErrMissingPin},
		{"negative pin", func(c *Config) { c.Pins.OE = -7 }, ErrMissingPin},
		{"dup data", func(c *Config) { c.Pins.G2 = c.Pins.R1 }, ErrDuplicatePin},
		{"dup addr oe", func(c *Config) { c.Pins.OE = c.Pins.D }, ErrDuplicatePin},
		{"depth 0", func(c *Config) { c.BitDepth = 0 }, ErrInvalidBitDepth},
		{"depth 17", func(c *Config) { c.BitDepth = 17 }, ErrInvalidBitDepth},
		{"clock 0", func(c *Config) { c.OutputClock = 0 }, ErrInvalidTiming},
		{"refresh 0", func(c *Config) { c.MinRefresh = 0 }, ErrInvalidTiming},
		{"blank negative", func(c *Config) { c.LatchBlanking = -1 }, ErrInvalidTiming},
		{"blank too wide", func(c *Config) { c.LatchBlanking = 32 }, ErrInvalidTiming},
		// order: dimensions before pins
		{"order", func(c *Config) { c.Width = 0; c.Pins.A = PinUnused }, ErrInvalidDimensions},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(64, Scan16)
			c.mod(&cfg)
			_, err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, c.expect, errors.Cause(err), errors.ErrorStack(err))
		})
	}
}

func TestValidateChainGeometry(t *testing.T) {
	t.Parallel()

	c := validConfig(64, Scan16)
	c.ChainLength = 2
	g, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, 128, g.VirtualWidth)
	assert.Equal(t, 2, g.Segments)
	assert.Equal(t, 64, g.PanelWidth)
	assert.Equal(t, 8, g.PlaneCount)
	assert.Equal(t, 128*32, g.Pixels())
}

func TestTiming(t *testing.T) {
	t.Parallel()

	type Case struct {
		width   int
		minRate float64
		ok      bool
	}
	cases := []Case{
		{32, 60, true},  // 76.6Hz
		{64, 60, false}, // 38.3Hz
	}
	for _, c := range cases {
		cfg := validConfig(c.width, Scan32)
		g, err := cfg.Validate()
		require.NoError(t, err)
		tm := g.Timing(20 * physic.MegaHertz)
		assert.Equal(t, time.Duration(c.width)*50*time.Nanosecond, tm.Unit)
		assert.Equal(t, tm.Unit*255*32, tm.Frame)
		assert.Equal(t, c.ok, tm.RefreshRate() >= c.minRate, "width=%d rate=%.1f", c.width, tm.RefreshRate())
	}
}

func TestTimingRefreshBoundary(t *testing.T) {
	t.Parallel()

	// 64*16*255 cycles at 30MHz: exact 114.8897Hz, unit 2133.33ns
	cfg := validConfig(64, Scan16)
	cfg.BitDepth = 8
	cfg.OutputClock = 30 * physic.MegaHertz
	g, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, uint64(64*16*255), g.FrameCycles())
	tm := g.Timing(cfg.OutputClock)
	assert.Equal(t, time.Duration(8704000), tm.Frame)
	assert.InDelta(t, 114.8897, tm.RefreshRate(), 0.0001)

	assert.False(t, g.Attainable(cfg.OutputClock, 114900*physic.MilliHertz))
	assert.False(t, g.Attainable(cfg.OutputClock, 114890*physic.MilliHertz))
	assert.True(t, g.Attainable(cfg.OutputClock, 114880*physic.MilliHertz))
	assert.True(t, g.Attainable(cfg.OutputClock, 60*physic.Hertz))
	assert.False(t, g.Attainable(0, 60*physic.Hertz))

	// exactly one frame per period is accepted
	exact := physic.Frequency(g.FrameCycles()) * 115 * physic.Hertz
	assert.True(t, g.Attainable(exact, 115*physic.Hertz))
	assert.False(t, g.Attainable(exact-1, 115*physic.Hertz))
}

func TestTimingPlaneSum(t *testing.T) {
	t.Parallel()

	for depth := 1; depth <= MaxBitDepth; depth++ {
		cfg := validConfig(64, Scan16)
		cfg.BitDepth = depth
		g, err := cfg.Validate()
		require.NoError(t, err)
		tm := g.Timing(cfg.OutputClock)
		var sum time.Duration
		for p := 0; p < depth; p++ {
			sum += tm.Plane(p)
		}
		assert.Equal(t, tm.Unit*time.Duration(1<<uint(depth)-1), sum)
		assert.Equal(t, tm.Row, sum)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := ParseScanPattern("1/32")
	require.NoError(t, err)
	assert.Equal(t, Scan32, s)
	s, err = ParseScanPattern("8")
	require.NoError(t, err)
	assert.Equal(t, Scan8, s)
	_, err = ParseScanPattern("1/2")
	assert.Equal(t, ErrUnsupportedScanPattern, errors.Cause(err))
	_, err = ParseScanPattern("half")
	assert.Equal(t, ErrUnsupportedScanPattern, errors.Cause(err))

	o, err := ParsePlaneOrder("interleaved")
	require.NoError(t, err)
	assert.Equal(t, Interleaved, o)
	_, err = ParsePlaneOrder("msb")
	assert.True(t, errors.IsNotValid(err))
}
