package log2

import (
	"bytes"
	"fmt"
	"runtime"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog2(t *testing.T) {
	t.Parallel()

	type Case struct {
		name string
		fun  func(t testing.TB, l *Log) string
	}
	cases := []Case{
		{"caller/debug", func(t testing.TB, l *Log) string {
			l.SetFlags(Lshortfile)
			l.Debugf("plane=%d", 3)
			return formatCallerShort(1) + "debug: plane=3\n"
		}},
		{"caller/info", func(t testing.TB, l *Log) string {
			l.SetFlags(Lshortfile)
			l.Infof("refresh=%.1fHz", 76.6)
			return formatCallerShort(1) + "refresh=76.6Hz\n"
		}},
		{"caller/error", func(t testing.TB, l *Log) string {
			l.SetFlags(Lshortfile)
			l.Errorf("transport")
			return formatCallerShort(1) + "error: transport\n"
		}},
		{"error-func/error", func(t testing.TB, l *Log) string {
			ech := make(chan error, 1)
			l.SetErrorFunc(func(e error) { ech <- e })
			l.SetFlags(0)
			exactError := errors.New("peripheral fault")
			l.Error(exactError)
			close(ech)
			e := <-ech
			if l == nil {
				assert.Nil(t, e)
			} else {
				assert.Equal(t, exactError, e)
			}
			return "error: peripheral fault\n"
		}},
		{"error-func/string", func(t testing.TB, l *Log) string {
			ech := make(chan error, 1)
			l.SetErrorFunc(func(e error) { ech <- e })
			l.SetFlags(0)
			l.Errorf("row=%d plane=%d", 7, 2)
			close(ech)
			e := <-ech
			if l == nil {
				assert.Nil(t, e)
			} else {
				assert.Equal(t, "row=7 plane=2", e.Error())
			}
			return "error: row=7 plane=2\n"
		}},
		{"level/skip-debug", func(t testing.TB, l *Log) string {
			l.SetFlags(0)
			l.SetLevel(LInfo)
			l.Debugf("hidden")
			l.Info("shown")
			return "shown\n"
		}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name+"/logger=nil", func(t *testing.T) {
			c.fun(t, nil)
		})
		t.Run(c.name, func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			l := NewWriter(buf, LAll)
			expect := c.fun(t, l)
			assert.Equal(t, expect, buf.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LDebug, l)
	_, err = ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
}

func TestClonePreservesErrorFunc(t *testing.T) {
	t.Parallel()

	var got error
	l := NewWriter(bytes.NewBuffer(nil), LError)
	l.SetErrorFunc(func(e error) { got = e })
	c := l.Clone(LDebug)
	assert.True(t, c.Enabled(LDebug))
	c.Errorf("underrun")
	require.Error(t, got)
	assert.Equal(t, "underrun", got.Error())
}

func callerShort(depth int) (file string, line int) {
	var ok bool
	_, file, line, ok = runtime.Caller(depth)
	if !ok {
		file = "???"
		line = 0
	}

	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	file = short

	return
}

func formatCallerShort(depth int) string {
	file, line := callerShort(depth + 1)
	return fmt.Sprintf("%s:%d: ", file, line-1)
}
