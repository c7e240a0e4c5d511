// Package hub75 implements scan transports which drive HUB75 connector lines.
package hub75

import (
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hub75/bcm"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
	"periph.io/x/periph/conn/physic"
)

// Line indexes, same order as panel.Pins.Signals().
// Lines 0..12 match bcm word bits.
const (
	lineLAT   = bcm.BitLAT
	lineOE    = bcm.BitOE
	lineCLK   = 13
	lineCount = 14
)

var ErrClosed = errors.New("transport closed")

// lineDriver buffers line levels, flush applies them to hardware.
type lineDriver interface {
	set(line int, v byte)
	flush() error
}

// bitbang shifts units through lineDriver in worker goroutine.
// Every clock edge costs one flush, which is far slower than any supported clock,
// so edges are not delayed.
type bitbang struct {
	alive  *alive.Alive
	log    *log2.Log
	out    lineDriver
	clock  physic.Frequency
	active byte // clock level at sampling edge
	units  chan *bcm.Unit
	done   chan error
	sleep  func(time.Duration)
}

func (self *bitbang) start(out lineDriver, clock physic.Frequency, phaseInverted bool, log *log2.Log) error {
	self.out = out
	self.clock = clock
	self.log = log
	self.active = 1
	if phaseInverted {
		self.active = 0
	}
	if self.sleep == nil {
		self.sleep = time.Sleep
	}
	self.units = make(chan *bcm.Unit)
	self.done = make(chan error, 1)
	if err := self.reset(); err != nil {
		return err
	}
	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.worker()
	return nil
}

// reset blanks output and returns clock to idle level
func (self *bitbang) reset() error {
	for i := 0; i < lineCount; i++ {
		self.out.set(i, 0)
	}
	self.out.set(lineOE, 1)
	self.out.set(lineCLK, 1-self.active)
	return self.out.flush()
}

func (self *bitbang) worker() {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		select {
		case u := <-self.units:
			self.done <- self.shift(u)
		case <-stopch:
			return
		}
	}
}

func (self *bitbang) transmit(u *bcm.Unit) error {
	if self.alive == nil {
		return errors.Annotate(ErrClosed, "transmit before open")
	}
	select {
	case self.units <- u:
		return nil
	case <-self.alive.StopChan():
		return ErrClosed
	}
}

func (self *bitbang) completion() <-chan error { return self.done }

// shift clocks out columns with LAT held low, pulses LAT after last column,
// then enables output for unit duration.
func (self *bitbang) shift(u *bcm.Unit) error {
	idle := 1 - self.active
	for _, w := range u.Words {
		for i := 0; i < lineLAT; i++ {
			self.out.set(i, byte(w>>uint(i))&1)
		}
		self.out.set(lineOE, 1)
		self.out.set(lineCLK, self.active)
		if err := self.out.flush(); err != nil {
			return errors.Annotatef(err, "row=%d plane=%d clock", u.Row, u.Plane)
		}
		self.out.set(lineCLK, idle)
		if bcm.WordLatch(w) {
			self.out.set(lineLAT, 1)
		}
		if err := self.out.flush(); err != nil {
			return errors.Annotatef(err, "row=%d plane=%d clock", u.Row, u.Plane)
		}
	}
	self.out.set(lineLAT, 0)
	self.out.set(lineOE, 0)
	if err := self.out.flush(); err != nil {
		return errors.Annotatef(err, "row=%d plane=%d latch", u.Row, u.Plane)
	}
	self.sleep(u.Duration)
	self.out.set(lineOE, 1)
	return errors.Annotatef(self.out.flush(), "row=%d plane=%d blank", u.Row, u.Plane)
}

// stop waits for unit in flight and blanks output.
func (self *bitbang) stop() error {
	if self.alive == nil {
		return nil
	}
	self.alive.Stop()
	self.alive.Wait()
	return self.reset()
}

func (self *bitbang) String() string {
	return fmt.Sprintf("bitbang clock=%s active=%d", self.clock, self.active)
}

// lineOffsets returns assigned pins in line order, -1 for unused.
func lineOffsets(pins panel.Pins) [lineCount]int {
	var offsets [lineCount]int
	for i, s := range pins.Signals() {
		offsets[i] = s.Pin
	}
	return offsets
}
