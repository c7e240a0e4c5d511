package scan

import (
	"github.com/temoto/hub75/bcm"
	"periph.io/x/periph/conn/physic"
)

// Transport shifts transmission units onto panel data lines.
// Per-column LAT and OE bits in Words are for transports that stream words as is (DMA style).
// Bit-bang transports hold OE high while shifting, latch once and display for Duration.
// Scheduler owns transport between Open and Close and calls it from single goroutine.
type Transport interface {
	// Open prepares output at clock rate. phaseInverted means panel samples data on falling clock edge.
	Open(clock physic.Frequency, phaseInverted bool) error
	// Transmit starts asynchronous output of u: shift Words, latch, display for u.Duration.
	// Exactly one value is sent to Completion for every Transmit that returned nil.
	// u is valid until completion is signaled.
	Transmit(u *bcm.Unit) error
	// Completion delivers result of each Transmit in order.
	Completion() <-chan error
	// Close waits for unit in flight and releases hardware.
	Close() error
}
