// Package scan runs refresh loop: frame after frame, row after row, plane after plane
// from Active buffer set to output transport.
package scan

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hub75/dmabuf"
	"github.com/temoto/hub75/helpers"
	"github.com/temoto/hub75/helpers/atomic_clock"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
	"periph.io/x/periph/conn/physic"
)

var (
	ErrPeripheralFault         = errors.New("peripheral fault")
	ErrRefreshRateUnattainable = errors.New("refresh rate unattainable")
	ErrStopped                 = errors.New("scheduler stopped")
)

type Stat struct {
	Frames uint64
	Units  uint64
	Faults uint32
}

type Scheduler struct {
	alive  *alive.Alive
	log    *log2.Log
	buf    *dmabuf.Manager
	tr     Transport
	geom   panel.Geometry
	timing panel.Timing
	clock  physic.Frequency
	phase  bool

	err       helpers.AtomicError
	lastFrame atomic_clock.Clock
	period    int64 // ns, last complete frame
	frames    uint64
	units     uint64
	faults    uint32
}

// New computes frame timing and fails fast with ErrRefreshRateUnattainable
// when one frame does not fit into 1/MinRefresh.
// Config must be validated already, g is result of Validate.
func New(c *panel.Config, g panel.Geometry, buf *dmabuf.Manager, tr Transport, log *log2.Log) (*Scheduler, error) {
	t := g.Timing(c.OutputClock)
	if t.Frame <= 0 || !g.Attainable(c.OutputClock, c.MinRefresh) {
		return nil, errors.Annotatef(ErrRefreshRateUnattainable, "frame=%v achievable=%.1fHz min_refresh=%s clock=%s rows=%d depth=%d width=%d",
			t.Frame, t.RefreshRate(), c.MinRefresh, c.OutputClock, g.RowsPerScan, g.PlaneCount, g.VirtualWidth)
	}
	if buf == nil || tr == nil {
		return nil, errors.NotValidf("scheduler buf=%v transport=%v", buf, tr)
	}
	self := &Scheduler{
		alive:  alive.NewAlive(),
		log:    log,
		buf:    buf,
		tr:     tr,
		geom:   g,
		timing: t,
		clock:  c.OutputClock,
		phase:  c.ClockPhaseInverted,
	}
	return self, nil
}

func (self *Scheduler) Timing() panel.Timing { return self.timing }

func (self *Scheduler) String() string {
	return fmt.Sprintf("scan rows=%d planes=%d unit=%v frame=%v (%.1fHz)",
		self.geom.RowsPerScan, self.geom.PlaneCount, self.timing.Unit, self.timing.Frame, self.timing.RefreshRate())
}

// Run opens transport and refreshes panel until Stop or transport fault.
// Returns nil after Stop, error with Cause ErrPeripheralFault otherwise.
// Transport is closed before return in both cases.
// Scheduler runs once, use new one after stop.
func (self *Scheduler) Run() error {
	if !self.alive.Add(1) {
		return ErrStopped
	}
	defer self.alive.Done()
	defer self.alive.Stop()

	if err := self.tr.Open(self.clock, self.phase); err != nil {
		err = errors.Wrapf(err, ErrPeripheralFault, "transport open clock=%s", self.clock)
		// release whatever Open acquired before failing
		if cerr := self.tr.Close(); cerr != nil {
			err = errors.Annotate(err, cerr.Error())
		}
		return self.fault(err)
	}
	self.log.Debugf("%s started", self.String())

	var err error
	for err == nil && !self.alive.IsStopping() {
		err = self.frame()
	}
	if cerr := self.tr.Close(); cerr != nil {
		cerr = errors.Wrapf(cerr, ErrPeripheralFault, "transport close")
		if err == nil {
			err = cerr
		} else {
			err = errors.Annotate(err, cerr.Error())
		}
	}
	if err != nil {
		return self.fault(err)
	}
	self.log.Debugf("scan stopped frames=%d", atomic.LoadUint64(&self.frames))
	return nil
}

// Stop requests halt at next row boundary and waits until transport is closed.
func (self *Scheduler) Stop() {
	self.alive.Stop()
	self.alive.Wait()
}

func (self *Scheduler) StopChan() <-chan struct{} { return self.alive.StopChan() }
func (self *Scheduler) WaitChan() <-chan struct{} { return self.alive.WaitChan() }
func (self *Scheduler) IsRunning() bool           { return self.alive.IsRunning() }

// Err returns first fault which stopped Run, nil if none.
func (self *Scheduler) Err() error {
	err, _ := self.err.Load()
	return err
}

// RefreshRate is measured frames per second over last completed frame, 0 before first one.
func (self *Scheduler) RefreshRate() float64 {
	p := atomic.LoadInt64(&self.period)
	if p <= 0 {
		return 0
	}
	return float64(time.Second) / float64(p)
}

func (self *Scheduler) Stat() Stat {
	return Stat{
		Frames: atomic.LoadUint64(&self.frames),
		Units:  atomic.LoadUint64(&self.units),
		Faults: atomic.LoadUint32(&self.faults),
	}
}

// frame transmits one full buffer set. Buffer swap happens only in Acquire, between frames.
// Stop request is honored between rows, rows are never cut.
func (self *Scheduler) frame() error {
	set := self.buf.Acquire()
	defer self.buf.Release()

	order := set.Order()
	for row := 0; row < self.geom.RowsPerScan; row++ {
		if row != 0 && self.alive.IsStopping() {
			return nil
		}
		for _, p := range order {
			u := set.Unit(row, p)
			if err := self.tr.Transmit(u); err != nil {
				return errors.Wrapf(err, ErrPeripheralFault, "transmit row=%d plane=%d", row, p)
			}
			if err := <-self.tr.Completion(); err != nil {
				return errors.Wrapf(err, ErrPeripheralFault, "completion row=%d plane=%d", row, p)
			}
			atomic.AddUint64(&self.units, 1)
		}
	}
	atomic.AddUint64(&self.frames, 1)
	if d := self.lastFrame.Swap(); d > 0 {
		atomic.StoreInt64(&self.period, int64(d))
	}
	return nil
}

func (self *Scheduler) fault(err error) error {
	atomic.AddUint32(&self.faults, 1)
	self.err.StoreOnce(err)
	self.log.Error(err)
	return err
}
