// Package dmabuf owns BCM buffer sets shared between frame producer and scan consumer.
//
// Double buffer: producer writes Pending, consumer reads Active.
// Active index and pending state live in single atomic word,
// consumer observes it once per frame boundary. Published Pending is never taken back,
// producer waits on Swapped() until consumer makes it Active.
//
// Single buffer: one set, consumer holds frame lock while transmitting a frame,
// producer takes the lock between frames. Saves half the memory, producer waits
// up to one frame period and fast updates may still tear across frames.
package dmabuf

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/hub75/bcm"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
)

var (
	ErrBufferUnderrun = errors.New("buffer underrun")
	ErrWriteBusy      = errors.New("pending buffer already being written")
	ErrNotWriting     = errors.New("publish without write")
	ErrPendingReady   = errors.New("published buffer not yet swapped")
)

// state word: bit 0 active index, bits 1..2 pending state
const (
	pendingIdle uint32 = iota << 1
	pendingWriting
	pendingReady

	activeMask  uint32 = 1
	pendingMask uint32 = 3 << 1
)

type Stat struct {
	Swaps     uint32
	Underruns uint32
	Aborts    uint32
}

type Manager struct {
	log    *log2.Log
	double bool
	sets   [2]*bcm.Set
	state  uint32
	stat   Stat
	// swapped receives token after each swap, capacity 1
	swapped chan struct{}

	// single buffer mode
	frameLock sync.Mutex
	writing   uint32
}

// New allocates one or two full buffer sets.
func New(g panel.Geometry, t panel.Timing, order panel.PlaneOrder, double bool, log *log2.Log) *Manager {
	self := &Manager{
		log:     log,
		double:  double,
		swapped: make(chan struct{}, 1),
	}
	self.sets[0] = bcm.NewSet(g, t, order)
	if double {
		self.sets[1] = bcm.NewSet(g, t, order)
	}
	return self
}

func (self *Manager) Double() bool { return self.double }

// BeginWrite gives producer exclusive access to buffer set which is not observable by consumer.
// Double buffer: returns Pending set immediately, ErrWriteBusy if previous write not finished,
// ErrPendingReady if published set is not yet shown, wait on Swapped() and retry.
// Single buffer: blocks until consumer reaches frame boundary.
// Every successful BeginWrite must be followed by Publish or Abort.
func (self *Manager) BeginWrite() (*bcm.Set, error) {
	if !self.double {
		if !atomic.CompareAndSwapUint32(&self.writing, 0, 1) {
			return nil, ErrWriteBusy
		}
		self.frameLock.Lock()
		return self.sets[0], nil
	}
	for {
		old := atomic.LoadUint32(&self.state)
		switch old & pendingMask {
		case pendingWriting:
			return nil, ErrWriteBusy
		case pendingReady:
			return nil, ErrPendingReady
		}
		next := old&activeMask | pendingWriting
		if atomic.CompareAndSwapUint32(&self.state, old, next) {
			return self.sets[1-old&activeMask], nil
		}
	}
}

// Publish marks fully written Pending set ready. Consumer makes it Active at next frame boundary.
// In single buffer mode releases frame lock.
func (self *Manager) Publish() error {
	if !self.double {
		if !atomic.CompareAndSwapUint32(&self.writing, 1, 0) {
			return ErrNotWriting
		}
		self.frameLock.Unlock()
		atomic.AddUint32(&self.stat.Swaps, 1)
		return nil
	}
	for {
		old := atomic.LoadUint32(&self.state)
		if old&pendingMask != pendingWriting {
			return ErrNotWriting
		}
		if atomic.CompareAndSwapUint32(&self.state, old, old&activeMask|pendingReady) {
			return nil
		}
	}
}

// Abort discards partially written Pending set.
// Single buffer mode has no second set, partial content stays and is shown next frame.
func (self *Manager) Abort() {
	atomic.AddUint32(&self.stat.Aborts, 1)
	if !self.double {
		if atomic.CompareAndSwapUint32(&self.writing, 1, 0) {
			self.frameLock.Unlock()
		}
		return
	}
	for {
		old := atomic.LoadUint32(&self.state)
		if old&pendingMask != pendingWriting {
			return
		}
		if atomic.CompareAndSwapUint32(&self.state, old, old&activeMask|pendingIdle) {
			return
		}
	}
}

// Acquire is called by consumer at frame boundary and returns set to transmit for whole frame.
// Ready Pending becomes Active here and only here.
// Producer still writing means it missed the frame: previous Active is shown again
// and underrun counted.
// Every Acquire must be followed by Release after last unit of the frame.
func (self *Manager) Acquire() *bcm.Set {
	if !self.double {
		self.frameLock.Lock()
		return self.sets[0]
	}
	for {
		old := atomic.LoadUint32(&self.state)
		active := old & activeMask
		switch old & pendingMask {
		case pendingReady:
			next := 1 - active
			if atomic.CompareAndSwapUint32(&self.state, old, next|pendingIdle) {
				atomic.AddUint32(&self.stat.Swaps, 1)
				select {
				case self.swapped <- struct{}{}:
				default:
				}
				return self.sets[next]
			}
			continue
		case pendingWriting:
			n := atomic.AddUint32(&self.stat.Underruns, 1)
			if self.log.Enabled(log2.LDebug) {
				self.log.Debugf("%s count=%d", ErrBufferUnderrun.Error(), n)
			}
		}
		return self.sets[active]
	}
}

// Swapped signals that ready Pending became Active. Token may be stale, recheck with BeginWrite.
func (self *Manager) Swapped() <-chan struct{} { return self.swapped }

func (self *Manager) Release() {
	if !self.double {
		self.frameLock.Unlock()
	}
}

// Active returns set consumer shows now. For inspection only, do not modify.
func (self *Manager) Active() *bcm.Set {
	return self.sets[atomic.LoadUint32(&self.state)&activeMask]
}

func (self *Manager) Stat() Stat {
	return Stat{
		Swaps:     atomic.LoadUint32(&self.stat.Swaps),
		Underruns: atomic.LoadUint32(&self.stat.Underruns),
		Aborts:    atomic.LoadUint32(&self.stat.Aborts),
	}
}
