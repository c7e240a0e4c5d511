package subcmd

import (
	"bytes"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	mods := []Mod{{Name: "run", Usage: "drive panel"}, {Name: "version"}}
	m, err := Parse("run", mods)
	require.NoError(t, err)
	assert.Equal(t, &mods[0], m)
	m, err = Parse(" version\n", mods)
	require.NoError(t, err)
	assert.Equal(t, "version", m.Name)

	_, err = Parse("", mods)
	assert.True(t, errors.IsNotValid(err), errors.ErrorStack(err))
	_, err = Parse("flash", mods)
	assert.True(t, errors.IsNotFound(err), errors.ErrorStack(err))
	assert.Contains(t, err.Error(), "known=run,version")

	assert.Panics(t, func() { _, _ = Parse("x", []Mod{{}}) })
}

func TestUsage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Usage(&buf, []Mod{{Name: "run", Usage: "drive panel"}, {Name: "console", Usage: "interactive"}})
	assert.Equal(t, "  run      drive panel\n  console  interactive\n", buf.String())
}
