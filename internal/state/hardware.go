package state

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hub75/hardware/hub75"
	"github.com/temoto/hub75/panel"
	"github.com/temoto/hub75/scan"
)

type once struct {
	sync.Mutex
	done bool
	err  error
}

func (self *once) do(f func() error) error {
	self.Lock()
	defer self.Unlock()
	if self.done {
		return self.err
	}
	self.err = f()
	self.done = true
	return self.err
}

// mockKeep bounds memory of mock transport selected by config.
const mockKeep = 1024

type hardware struct {
	transport struct {
		once
		t scan.Transport
	}
}

// SetTransport overrides configured transport, must be called before Transport().
func (g *Global) SetTransport(t scan.Transport) {
	x := &g.hardware.transport
	_ = x.do(func() error {
		x.t = t
		return nil
	})
}

// Transport returns line driver selected by config transport.kind, created once.
func (g *Global) Transport(pins panel.Pins) (scan.Transport, error) {
	x := &g.hardware.transport
	err := x.do(func() error {
		cfg := &g.Config.Transport
		switch cfg.Kind {
		case TransportCdev, "":
			x.t = hub75.NewCdev(cfg.Chip, pins, g.Log)
		case TransportPeriph:
			x.t = hub75.NewPeriph(pins, g.Log)
		case TransportMock:
			m := hub75.NewMock()
			m.Keep = mockKeep
			x.t = m
		default:
			return errors.NotValidf("config: transport.kind=%q", cfg.Kind)
		}
		g.Log.Debugf("transport kind=%s", cfg.Kind)
		return nil
	})
	return x.t, err
}
