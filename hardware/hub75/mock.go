package hub75

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/hub75/bcm"
	"periph.io/x/periph/conn/physic"
)

// MockUnit is record of one transmitted unit.
type MockUnit struct {
	Row      int
	Plane    int
	Address  uint8
	Duration time.Duration
}

// Mock transport records units instead of driving lines.
type Mock struct {
	// FailAt injects PeripheralFault-like error in completion of n-th unit (1-based), 0 never.
	FailAt  int
	FailErr error
	// Delay emulates unit transmission time, completion is sent from other goroutine when > 0.
	Delay time.Duration
	// OnTransmit is called synchronously for each unit before completion.
	OnTransmit func(u *bcm.Unit)
	// Keep limits recorded units, 0 records all.
	Keep int

	mu     sync.Mutex
	units  []MockUnit
	count  int
	opened bool
	closed bool
	clock  physic.Frequency
	phase  bool
	done   chan error
}

func NewMock() *Mock { return &Mock{} }

func (self *Mock) Open(clock physic.Frequency, phaseInverted bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.opened && !self.closed {
		return errors.New("mock already open")
	}
	self.opened, self.closed = true, false
	self.clock, self.phase = clock, phaseInverted
	self.done = make(chan error, 1)
	return nil
}

func (self *Mock) Transmit(u *bcm.Unit) error {
	self.mu.Lock()
	if !self.opened || self.closed {
		self.mu.Unlock()
		return ErrClosed
	}
	self.count++
	n := self.count
	if self.Keep == 0 || len(self.units) < self.Keep {
		self.units = append(self.units, MockUnit{Row: u.Row, Plane: u.Plane, Address: u.Address, Duration: u.Duration})
	}
	done := self.done
	self.mu.Unlock()

	if self.OnTransmit != nil {
		self.OnTransmit(u)
	}
	var err error
	if self.FailAt != 0 && n == self.FailAt {
		err = self.FailErr
		if err == nil {
			err = errors.Errorf("mock fault unit=%d", n)
		}
	}
	if self.Delay > 0 {
		d := self.Delay
		go func() {
			time.Sleep(d)
			done <- err
		}()
	} else {
		done <- err
	}
	return nil
}

func (self *Mock) Completion() <-chan error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.done
}

func (self *Mock) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.closed = true
	return nil
}

// Units returns copy of recorded units.
func (self *Mock) Units() []MockUnit {
	self.mu.Lock()
	defer self.mu.Unlock()
	us := make([]MockUnit, len(self.units))
	copy(us, self.units)
	return us
}

// Count is number of transmitted units including not recorded.
func (self *Mock) Count() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.count
}

func (self *Mock) State() (opened, closed bool, clock physic.Frequency, phaseInverted bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.opened, self.closed, self.clock, self.phase
}
