// Package console is interactive panel control: patterns, brightness, gamma, stats.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/hub75/cmd/hub75/run"
	"github.com/temoto/hub75/cmd/hub75/subcmd"
	"github.com/temoto/hub75/gamma"
	"github.com/temoto/hub75/helpers/cli"
	"github.com/temoto/hub75/internal/state"
	"github.com/temoto/hub75/pattern"
	"github.com/temoto/hub75/pixel"
)

const usage = `syntax: one command per line
- pattern NAME [ARGS]  draw test pattern: %s
- brightness N         0..255
- intensity F          0..1 scale of brightness
- gamma MODE           linear|cie1931|custom
- show                 print frame as text
- stat                 scan loop counters
- save                 store brightness and gamma
- sN                   pause N milliseconds
`

var Mod = subcmd.Mod{Name: "console", Usage: "interactive commands: pattern, brightness, gamma, stat", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	c := New(g, os.Stdout)
	cli.MainLoop("hub75", func(line string) {
		if err := c.Exec(line); err != nil {
			g.Log.Error(errors.ErrorStack(err))
		}
	}, Complete, g.Stop)
	g.StopWait(5 * time.Second)
	return nil
}

type Console struct {
	g   *state.Global
	out io.Writer
}

func New(g *state.Global, out io.Writer) *Console { return &Console{g: g, out: out} }

func Complete(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "pattern", Description: "draw test pattern"},
		{Text: "brightness", Description: "set brightness 0..255"},
		{Text: "intensity", Description: "scale brightness 0..1"},
		{Text: "gamma", Description: "set gamma mode"},
		{Text: "show", Description: "print frame as text"},
		{Text: "stat", Description: "scan loop counters"},
		{Text: "save", Description: "store brightness and gamma"},
		{Text: "sN", Description: "pause for N ms"},
	}
	for _, n := range pattern.Names() {
		suggests = append(suggests, prompt.Suggest{Text: n, Description: "pattern"})
	}
	return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
}

func (self *Console) Exec(line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	cmd, args := words[0], words[1:]
	d := self.g.Driver
	switch {
	case cmd == "help":
		fmt.Fprintf(self.out, usage, strings.Join(pattern.Names(), ","))
		return nil

	case cmd == "pattern":
		if len(args) == 0 {
			return errors.NotValidf("pattern name")
		}
		return run.Show(self.g, strings.Join(args, " "))

	case cmd == "brightness":
		if len(args) != 1 {
			return errors.NotValidf("brightness expects N")
		}
		v, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return errors.Annotatef(err, "brightness=%s", args[0])
		}
		return d.SetBrightness(uint8(v))

	case cmd == "intensity":
		if len(args) != 1 {
			return errors.NotValidf("intensity expects F")
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return errors.Annotatef(err, "intensity=%s", args[0])
		}
		return d.SetIntensity(v)

	case cmd == "gamma":
		if len(args) != 1 {
			return errors.NotValidf("gamma expects MODE")
		}
		m, err := gamma.ParseMode(args[0])
		if err != nil {
			return err
		}
		return d.SetGammaMode(m)

	case cmd == "show":
		return d.Draw(func(f *pixel.Frame) { fmt.Fprint(self.out, pattern.String(f)) })

	case cmd == "stat":
		fmt.Fprintf(self.out, "%s refresh=%.1fHz\n", d.Stat().String(), d.RefreshRate())
		return nil

	case cmd == "save":
		return self.g.StoreSettings()

	case cmd[0] == 's':
		i, err := strconv.ParseUint(cmd[1:], 10, 32)
		if err != nil {
			return errors.Annotatef(err, "token=%s", cmd)
		}
		time.Sleep(time.Duration(i) * time.Millisecond)
		return nil
	}
	return errors.NotSupportedf("command=%s", cmd)
}
