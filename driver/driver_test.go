package driver

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hub75/bcm"
	"github.com/temoto/hub75/gamma"
	"github.com/temoto/hub75/hardware/hub75"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
	"github.com/temoto/hub75/pixel"
	"github.com/temoto/hub75/scan"
)

func testConfig() panel.Config {
	c := panel.Default()
	c.Width = 32
	c.BitDepth = 6
	c.Pins = panel.Pins{R1: 1, G1: 2, B1: 3, R2: 4, G2: 5, B2: 6, A: 7, B: 8, C: 9, D: 10, E: -1, LAT: 11, OE: 12, CLK: 13}
	return c
}

func eventually(t testing.TB, f func() bool, msg string) {
	deadline := time.Now().Add(5 * time.Second)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatal("timeout: " + msg)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartErrors(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		modify func(*panel.Config)
		expect error
	}
	cases := []Case{
		{"1/32 without E", func(c *panel.Config) {
			c.Width, c.Height, c.Scan = 64, 64, panel.Scan32
		}, panel.ErrMissingAddressLine},
		{"refresh", func(c *panel.Config) {
			c.Width, c.ChainLength, c.BitDepth = 64, 4, 10
		}, scan.ErrRefreshRateUnattainable},
		{"custom gamma", func(c *panel.Config) {
			c.Gamma, c.CustomGamma = gamma.Custom, []uint16{1, 2, 3}
		}, gamma.ErrInvalidTable},
		{"depth", func(c *panel.Config) { c.BitDepth = 17 }, panel.ErrInvalidBitDepth},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			c.modify(&cfg)
			m := hub75.NewMock()
			d := New(cfg, m, log2.NewTest(t, log2.LDebug))
			err := d.Start()
			require.Error(t, err)
			assert.Equal(t, c.expect, errors.Cause(err), errors.ErrorStack(err))
			assert.False(t, d.IsRunning())
			assert.Equal(t, ErrNotRunning, d.Flush())
			assert.Equal(t, 0, m.Count())
			opened, _, _, _ := m.State()
			assert.False(t, opened)
		})
	}
}

func TestFlushShowsFrame(t *testing.T) {
	t.Parallel()

	m := hub75.NewMock()
	var red uint32
	m.OnTransmit = func(u *bcm.Unit) {
		if u.Row == 2 && u.Plane == 5 {
			up, _ := bcm.WordData(u.Words[3])
			atomic.StoreUint32(&red, uint32(up&1))
		}
	}
	d := New(testConfig(), m, log2.NewTest(t, log2.LDebug))
	assert.Equal(t, 32, d.Width())
	assert.Equal(t, 32, d.Height())
	require.NoError(t, d.Start())
	assert.True(t, d.IsRunning())
	assert.Equal(t, ErrAlreadyRunning, d.Start())

	eventually(t, func() bool { return d.Stat().Frames >= 1 }, "first frame")
	assert.Equal(t, uint32(0), atomic.LoadUint32(&red))

	d.SetPixel(3, 2, 255, 0, 0)
	require.NoError(t, d.Flush())
	eventually(t, func() bool { return atomic.LoadUint32(&red) == 1 }, "red pixel scanned")

	d.Clear()
	require.NoError(t, d.Flush())
	eventually(t, func() bool { return atomic.LoadUint32(&red) == 0 }, "cleared")

	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())
	st := d.Stat()
	assert.Equal(t, uint64(3), st.Encoded)
	assert.True(t, st.Swaps >= 2, st.String())
	assert.Equal(t, uint32(0), st.Faults)
	assert.True(t, d.RefreshRate() > 0)
	_, closed, _, _ := m.State()
	assert.True(t, closed)

	// restart keeps frame content and gamma
	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())
}

func TestSingleBuffer(t *testing.T) {
	t.Parallel()

	c := testConfig()
	c.DoubleBuffer = false
	m := hub75.NewMock()
	d := New(c, m, log2.NewTest(t, log2.LDebug))
	require.NoError(t, d.Start())
	for i := 0; i < 5; i++ {
		d.Fill(uint8(i*50), 0, 0)
		require.NoError(t, d.Flush())
	}
	require.NoError(t, d.Stop())
	assert.Equal(t, uint64(6), d.Stat().Encoded)
}

func TestGammaRuntime(t *testing.T) {
	t.Parallel()

	c := testConfig()
	c.BitDepth = 8
	c.Gamma = gamma.Linear
	c.TemporalDither = true
	d := New(c, hub75.NewMock(), log2.NewTest(t, log2.LDebug))
	assert.Nil(t, d.Gamma())
	require.NoError(t, d.SetBrightness(128))
	require.NoError(t, d.Start())
	defer d.Stop() //nolint:errcheck
	assert.Equal(t, uint16(128), d.Gamma().Lookup(255))

	require.NoError(t, d.SetBrightness(255))
	assert.Equal(t, uint16(255), d.Gamma().Lookup(255))
	assert.Equal(t, uint8(255), d.Config().Brightness)

	require.NoError(t, d.SetGammaMode(gamma.CIE1931))
	assert.Equal(t, gamma.CIE1931, d.Gamma().Mode())
	assert.Equal(t, uint16(46), d.Gamma().Lookup(128))

	err := d.SetGammaMode(gamma.Custom)
	assert.Equal(t, gamma.ErrInvalidTable, errors.Cause(err))
	assert.Equal(t, gamma.CIE1931, d.Gamma().Mode())

	custom := make([]uint16, gamma.TableSize)
	for i := range custom {
		custom[i] = uint16(255 - i)
	}
	require.NoError(t, d.SetCustomGamma(custom))
	assert.Equal(t, uint16(255), d.Gamma().Lookup(0))
	assert.Equal(t, gamma.ErrInvalidTable, errors.Cause(d.SetCustomGamma(custom[:10])))
	assert.Equal(t, uint16(255), d.Gamma().Lookup(0), "failed update keeps table")
	require.NoError(t, d.Flush())
}

func TestDrawPixels(t *testing.T) {
	t.Parallel()

	d := New(testConfig(), hub75.NewMock(), log2.NewTest(t, log2.LDebug))
	buf := []byte{0x00, 0xf8, 0xe0, 0x07}
	assert.Equal(t, ErrNotRunning, d.DrawPixels(0, 0, 2, 1, buf, pixel.RGB565, pixel.OrderRGB, false))
	require.NoError(t, d.Start())
	defer d.Stop() //nolint:errcheck
	require.NoError(t, d.DrawPixels(31, 0, 2, 1, buf, pixel.RGB565, pixel.OrderRGB, false))
	require.NoError(t, d.Draw(func(f *pixel.Frame) {
		r, g, b := f.RGB(31, 0)
		assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
	}))
}

func TestFaultStops(t *testing.T) {
	t.Parallel()

	m := hub75.NewMock()
	m.FailAt = 100
	d := New(testConfig(), m, log2.NewTest(t, log2.LDebug))
	require.NoError(t, d.Start())
	err := d.Wait()
	assert.Equal(t, scan.ErrPeripheralFault, errors.Cause(err))
	assert.False(t, d.IsRunning())
	assert.Equal(t, uint32(1), d.Stat().Faults)
	assert.Equal(t, err, d.Stop())
}

func TestFlushTightLoopShowsEveryFrame(t *testing.T) {
	t.Parallel()

	m := hub75.NewMock()
	m.Keep = 1
	c := testConfig()
	c.BitDepth = 4
	d := New(c, m, log2.NewTest(t, log2.LInfo))
	require.NoError(t, d.Start())
	published := uint64(1) // initial frame from Start
	deadline := time.Now().Add(200 * time.Millisecond)
	for i := 0; time.Now().Before(deadline); i++ {
		d.Fill(uint8(i), 0, 0)
		require.NoError(t, d.Flush())
		published++
	}
	require.NoError(t, d.Stop())
	st := d.Stat()
	assert.Equal(t, published, st.Encoded)
	// last published frame may still wait for boundary when loop stopped
	assert.True(t, published-uint64(st.Swaps) <= 1, "published=%d %s", published, st.String())
	assert.True(t, st.Swaps > 1, st.String())
}

func TestFlushAfterStop(t *testing.T) {
	t.Parallel()

	d := New(testConfig(), hub75.NewMock(), log2.NewTest(t, log2.LDebug))
	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())
	// initial frame is swapped or still ready, either way Flush must not block
	errch := make(chan error, 2)
	go func() {
		errch <- d.Flush()
		errch <- d.Flush()
	}()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errch:
			if err != nil {
				assert.Equal(t, ErrNotRunning, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Flush blocked after Stop")
		}
	}
}

func TestIntensity(t *testing.T) {
	t.Parallel()

	c := testConfig()
	c.BitDepth = 8
	c.Gamma = gamma.Linear
	c.Brightness = 255
	d := New(c, hub75.NewMock(), log2.NewTest(t, log2.LDebug))
	assert.Equal(t, 1.0, d.Intensity())
	// before Start intensity is kept and applied to first table
	require.NoError(t, d.SetIntensity(0.25))
	require.NoError(t, d.Start())
	defer d.Stop() //nolint:errcheck
	assert.Equal(t, uint8(64), d.Gamma().Brightness())

	require.NoError(t, d.SetIntensity(0.5))
	assert.Equal(t, uint16(128), d.Gamma().Lookup(255))
	assert.Equal(t, uint8(255), d.Config().Brightness, "base brightness unchanged")

	// intensity scales new base brightness
	require.NoError(t, d.SetBrightness(100))
	assert.Equal(t, uint8(50), d.Gamma().Brightness())

	require.NoError(t, d.SetIntensity(0))
	assert.Equal(t, uint16(0), d.Gamma().Lookup(255))

	for _, v := range []float64{-0.1, 1.5, math.NaN()} {
		err := d.SetIntensity(v)
		assert.True(t, errors.IsNotValid(err), "v=%v", v)
	}
	assert.Equal(t, 0.0, d.Intensity())

	require.NoError(t, d.SetIntensity(1))
	assert.Equal(t, uint16(100), d.Gamma().Lookup(255))
}
