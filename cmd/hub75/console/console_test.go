package console

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hub75/gamma"
	"github.com/temoto/hub75/internal/state"
	"github.com/temoto/hub75/pixel"
)

func TestConsole(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, g := state.NewTestContext(t, fmt.Sprintf(`
panel {
	width = 8
	height = 8
	scan = "1/4"
	bit_depth = 4
	pins {
		r1 = 1 g1 = 2 b1 = 3 r2 = 4 g2 = 5 b2 = 6
		a = 7 b = 8 lat = 11 oe = 12 clk = 13
	}
}
persist { root = "%s" }`, root))
	defer g.StopWait(5 * time.Second)

	out := new(bytes.Buffer)
	c := New(g, out)
	require.NoError(t, c.Exec(""))
	require.NoError(t, c.Exec("help"))
	assert.Contains(t, out.String(), "checker,clear,gradient")

	require.NoError(t, c.Exec("pattern solid 0 255 0"))
	require.NoError(t, g.Driver.Draw(func(f *pixel.Frame) {
		_, gr, _ := f.RGB(7, 7)
		assert.Equal(t, uint8(255), gr)
	}))
	out.Reset()
	require.NoError(t, c.Exec("pattern checker 4"))
	require.NoError(t, c.Exec("show"))
	lines := strings.Split(out.String(), "\n")
	require.True(t, len(lines) >= 8, out.String())
	assert.Equal(t, "████████        ", lines[0])
	assert.Equal(t, "        ████████", lines[7])

	require.NoError(t, c.Exec("brightness 40"))
	require.NoError(t, c.Exec("gamma linear"))
	assert.Equal(t, uint8(40), g.Driver.Config().Brightness)
	assert.Equal(t, gamma.Linear, g.Driver.Config().Gamma)
	require.NoError(t, c.Exec("save"))
	b, mode, _, ok := g.Settings.Get()
	assert.True(t, ok)
	assert.Equal(t, uint8(40), b)
	assert.Equal(t, gamma.Linear, mode)

	require.NoError(t, c.Exec("intensity 0.5"))
	assert.Equal(t, 0.5, g.Driver.Intensity())
	assert.Equal(t, uint8(20), g.Driver.Gamma().Brightness())
	assert.Equal(t, uint8(40), g.Driver.Config().Brightness)
	assert.True(t, errors.IsNotValid(errors.Cause(c.Exec("intensity 2"))))
	assert.Error(t, c.Exec("intensity half"))

	out.Reset()
	require.NoError(t, c.Exec("s1"))
	require.NoError(t, c.Exec("stat"))
	assert.Contains(t, out.String(), "frames=")

	assert.True(t, errors.IsNotSupported(errors.Cause(c.Exec("reboot"))))
	assert.True(t, errors.IsNotValid(errors.Cause(c.Exec("pattern"))))
	assert.Error(t, c.Exec("pattern plasma"))
	assert.Error(t, c.Exec("brightness 256"))
	assert.Error(t, c.Exec("gamma srgb"))
	assert.Equal(t, gamma.ErrInvalidTable, errors.Cause(c.Exec("gamma custom")))
}
