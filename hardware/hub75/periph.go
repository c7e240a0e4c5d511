package hub75

import (
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/hub75/bcm"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// Periph drives panel through periph.io host drivers, one call per changed pin.
// Pin numbers are resolved with gpioreg.ByName, so "17" means GPIO17 on Raspberry Pi.
type Periph struct {
	bitbang
	pins  panel.Pins
	log   *log2.Log
	io    [lineCount]gpio.PinOut
	level [lineCount]byte
	dirty [lineCount]bool
	// ByName resolves pin, gpioreg.ByName when nil
	ByName func(name string) gpio.PinIO
}

func NewPeriph(pins panel.Pins, log *log2.Log) *Periph {
	return &Periph{pins: pins, log: log}
}

func (self *Periph) Open(clock physic.Frequency, phaseInverted bool) error {
	byName := self.ByName
	if byName == nil {
		if _, err := host.Init(); err != nil {
			return errors.Annotate(err, "periph host init")
		}
		byName = gpioreg.ByName
	}
	for i, o := range lineOffsets(self.pins) {
		if o < 0 {
			continue
		}
		p := byName(strconv.Itoa(o))
		if p == nil {
			return errors.NotFoundf("periph pin=%d", o)
		}
		self.io[i] = p
		self.dirty[i] = true
	}
	self.log.Debugf("hub75 periph pins=%v clock=%s", self.pins, clock)
	return self.bitbang.start(periphLines{self}, clock, phaseInverted, self.log)
}

func (self *Periph) Transmit(u *bcm.Unit) error { return self.bitbang.transmit(u) }
func (self *Periph) Completion() <-chan error   { return self.bitbang.completion() }

func (self *Periph) Close() error {
	return self.bitbang.stop()
}

type periphLines struct{ p *Periph }

func (self periphLines) set(line int, v byte) {
	p := self.p
	if p.io[line] == nil {
		return
	}
	if p.level[line] != v {
		p.level[line] = v
		p.dirty[line] = true
	}
}

func (self periphLines) flush() error {
	p := self.p
	for i, pin := range p.io {
		if pin == nil || !p.dirty[i] {
			continue
		}
		if err := pin.Out(gpio.Level(p.level[i] != 0)); err != nil {
			return errors.Annotatef(err, "periph pin=%s", pin)
		}
		p.dirty[i] = false
	}
	return nil
}
