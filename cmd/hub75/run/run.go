// Package run is service mode: start panel, show initial pattern, wait for signal.
package run

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/hub75/cmd/hub75/subcmd"
	"github.com/temoto/hub75/internal/state"
	"github.com/temoto/hub75/pattern"
	"github.com/temoto/hub75/pixel"
)

var Mod = subcmd.Mod{Name: "run", Usage: "drive panel with initial pattern until signal", Main: Main}

// Pattern shown after start, "name arg..." format.
var Pattern = "bars"

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	if err := Show(g, Pattern); err != nil {
		return errors.Annotate(err, "initial pattern")
	}

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("hub75 init complete")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case s := <-sigs:
		g.Log.Infof("signal=%s stopping", s)
		subcmd.SdNotify(daemon.SdNotifyStopping)
	case <-g.Alive.StopChan():
	}
	if !g.StopWait(5 * time.Second) {
		return errors.Timeoutf("stop")
	}
	return g.Driver.Wait()
}

func Show(g *state.Global, line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	var err error
	if derr := g.Driver.Draw(func(f *pixel.Frame) { err = pattern.Draw(f, words[0], words[1:]) }); derr != nil {
		return derr
	}
	if err != nil {
		return err
	}
	return g.Driver.Flush()
}
