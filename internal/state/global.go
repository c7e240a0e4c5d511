// Package state is application wiring: config file, logging, hardware transport,
// driver lifecycle and persisted display settings.
package state

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hub75/driver"
	"github.com/temoto/hub75/internal/state/persist"
	"github.com/temoto/hub75/log2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Driver       *driver.Driver
	Log          *log2.Log
	Settings     persist.Settings
	Persist      persist.Persist

	hardware hardware // hardware.go

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)
	return ctx, g
}

// NewTestContext reads inline config, forces mock transport and runs Init.
func NewTestContext(t testing.TB, confString string) (context.Context, *Global) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("hub75_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	ctx, g := NewContext(log)
	g.BuildVersion = "test"
	cfg, err := ReadConfig(log, fs, "test-inline")
	if err != nil {
		t.Fatal(errors.ErrorStack(err))
	}
	cfg.Transport.Kind = TransportMock
	if err := g.Init(ctx, cfg); err != nil {
		t.Fatal(errors.ErrorStack(err))
	}
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	level, err := log2.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Annotate(err, "config: log.level")
	}
	g.Log.SetLevel(level)

	pc, err := cfg.Panel.Panel()
	if err != nil {
		return errors.Annotate(err, "config")
	}

	if err = g.Persist.Init("display", &g.Settings, cfg.Persist.Root, g.Log); err != nil {
		return errors.Annotate(err, "persist init")
	}
	if err = g.Persist.Load(); err != nil {
		// broken storage must not keep panel dark
		g.Error(err)
	}
	if b, mode, custom, ok := g.Settings.Get(); ok {
		g.Log.Debugf("persist display brightness=%d gamma=%s", b, mode)
		pc.Brightness, pc.Gamma = b, mode
		if len(custom) != 0 {
			pc.CustomGamma = custom
		}
	}

	tr, err := g.Transport(pc.Pins)
	if err != nil {
		return errors.Annotate(err, "transport")
	}
	g.Driver = driver.New(pc, tr, g.Log)
	if err = g.Driver.Start(); err != nil {
		return errors.Annotate(err, "driver start")
	}
	pcStarted := g.Driver.Config()
	g.Log.Infof("started %s", pcStarted.String())

	g.Alive.Add(1)
	go g.watch()
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

// watch stops application when scan loop dies on its own.
func (g *Global) watch() {
	defer g.Alive.Done()
	errch := make(chan error, 1)
	go func() { errch <- g.Driver.Wait() }()
	select {
	case err := <-errch:
		if err != nil {
			g.Error(err, "scan loop")
		}
		g.Alive.Stop()
	case <-g.Alive.StopChan():
		g.Error(g.Driver.Stop(), "driver stop")
	}
}

// StoreSettings saves current runtime brightness and gamma.
func (g *Global) StoreSettings() error {
	c := g.Driver.Config()
	g.Settings.Set(c.Brightness, c.Gamma, c.CustomGamma)
	return g.Persist.Store()
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(err)
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}
