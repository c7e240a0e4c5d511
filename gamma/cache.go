package gamma

import (
	"sync"
	"sync/atomic"
)

// Cache holds last built table and rebuilds only when parameters change.
type Cache struct {
	mu     sync.Mutex
	table  *Table
	custom []uint16
	builds uint32
}

// Get returns cached table or builds new one. rebuilt reports whether Build ran.
func (self *Cache) Get(mode Mode, brightness uint8, bitDepth int, custom []uint16) (t *Table, rebuilt bool, err error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.table.same(mode, brightness, bitDepth) && (mode != Custom || equalU16(self.custom, custom)) {
		return self.table, false, nil
	}
	t, err = Build(mode, brightness, bitDepth, custom)
	if err != nil {
		return nil, false, err
	}
	self.table = t
	self.custom = nil
	if mode == Custom {
		self.custom = append([]uint16(nil), custom...)
	}
	atomic.AddUint32(&self.builds, 1)
	return t, true, nil
}

// Current returns last built table or nil.
func (self *Cache) Current() *Table {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.table
}

func (self *Cache) Builds() uint32 { return atomic.LoadUint32(&self.builds) }

func equalU16(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
