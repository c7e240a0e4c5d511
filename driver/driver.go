// Package driver assembles validator, gamma, encoder, buffers and scan loop into one panel driver.
//
// Caller draws into frame with SetPixel, DrawPixels or Draw, then Flush encodes it
// into pending buffer and publishes. Scan loop picks it up at next frame boundary.
package driver

import (
	"fmt"
	"math"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hub75/bcm"
	"github.com/temoto/hub75/dmabuf"
	"github.com/temoto/hub75/gamma"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
	"github.com/temoto/hub75/pixel"
	"github.com/temoto/hub75/scan"
)

var (
	ErrNotRunning     = errors.New("driver not running")
	ErrAlreadyRunning = errors.New("driver already running")
)

type Stat struct {
	Frames    uint64 // scanned
	Units     uint64
	Encoded   uint64
	Swaps     uint32
	Underruns uint32
	Aborts    uint32
	Faults    uint32
}

func (s Stat) String() string {
	return fmt.Sprintf("frames=%d units=%d encoded=%d swaps=%d underruns=%d aborts=%d faults=%d",
		s.Frames, s.Units, s.Encoded, s.Swaps, s.Underruns, s.Aborts, s.Faults)
}

type Driver struct {
	mu  sync.Mutex
	log *log2.Log
	cfg panel.Config
	tr  scan.Transport

	gamma gamma.Cache
	// scales cfg.Brightness, 0..1
	intensity float64
	table     *gamma.Table
	dither    *gamma.Dither
	frame     *pixel.Frame
	enc       *bcm.Encoder
	buf       *dmabuf.Manager
	sched     *scan.Scheduler
}

func New(cfg panel.Config, tr scan.Transport, log *log2.Log) *Driver {
	return &Driver{cfg: cfg, tr: tr, log: log, intensity: 1}
}

// Start validates config, builds gamma table, allocates buffers and starts scan loop.
// Any configuration error is returned with its kind, nothing is started then.
func (self *Driver) Start() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.sched != nil && self.sched.IsRunning() {
		return ErrAlreadyRunning
	}

	g, err := self.cfg.Validate()
	if err != nil {
		return err
	}
	table, _, err := self.gamma.Get(self.cfg.Gamma, self.effective(self.cfg.Brightness), self.cfg.BitDepth, self.cfg.CustomGamma)
	if err != nil {
		return errors.Annotate(err, "gamma")
	}
	buf := dmabuf.New(g, g.Timing(self.cfg.OutputClock), self.cfg.PlaneOrder, self.cfg.DoubleBuffer, self.log)
	sched, err := scan.New(&self.cfg, g, buf, self.tr, self.log)
	if err != nil {
		return err
	}

	self.table = table
	self.dither = nil
	if self.cfg.TemporalDither {
		self.dither = gamma.NewDither(g.Pixels() * 3)
	}
	if self.frame == nil || self.frame.Width != g.VirtualWidth || self.frame.Height != g.Height {
		self.frame = pixel.NewFrame(g.VirtualWidth, g.Height)
	}
	self.enc = bcm.NewEncoder(g)
	self.buf = buf
	self.sched = sched
	if err := self.flush(); err != nil {
		return errors.Annotate(err, "initial frame")
	}

	go func() { _ = sched.Run() }()
	self.log.Infof("hub75 started %s %s", self.cfg.String(), sched.String())
	return nil
}

// Stop halts scan loop at next row boundary and waits until transport is closed.
// Returns fault which stopped loop earlier, if any.
func (self *Driver) Stop() error {
	self.mu.Lock()
	sched := self.sched
	self.mu.Unlock()
	if sched == nil {
		return nil
	}
	sched.Stop()
	return sched.Err()
}

// Wait blocks until scan loop ends and returns its error.
func (self *Driver) Wait() error {
	self.mu.Lock()
	sched := self.sched
	self.mu.Unlock()
	if sched == nil {
		return ErrNotRunning
	}
	<-sched.WaitChan()
	return sched.Err()
}

func (self *Driver) IsRunning() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.sched != nil && self.sched.IsRunning()
}

// Width and Height of logical display, whole chain, valid after Start.
func (self *Driver) Width() int  { return self.cfg.Width * self.cfg.ChainLength }
func (self *Driver) Height() int { return self.cfg.Height }

func (self *Driver) Config() panel.Config {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.cfg
}

func (self *Driver) SetPixel(x, y int, r, g, b uint8) {
	self.mu.Lock()
	if self.frame != nil {
		self.frame.SetRGB(x, y, r, g, b)
	}
	self.mu.Unlock()
}

func (self *Driver) Fill(r, g, b uint8) {
	self.mu.Lock()
	if self.frame != nil {
		self.frame.Fill(r, g, b)
	}
	self.mu.Unlock()
}

func (self *Driver) Clear() { self.Fill(0, 0, 0) }

// DrawPixels copies w*h pixels of given format into frame at x,y, clipped to display.
func (self *Driver) DrawPixels(x, y, w, h int, buf []byte, format pixel.Format, order pixel.ColorOrder, bigEndian bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.frame == nil {
		return ErrNotRunning
	}
	return self.frame.Draw(x, y, w, h, buf, format, order, bigEndian)
}

// Draw runs f with exclusive access to frame, for image/draw users.
func (self *Driver) Draw(f func(frame *pixel.Frame)) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.frame == nil {
		return ErrNotRunning
	}
	f(self.frame)
	return nil
}

// Flush encodes current frame into pending buffer and publishes it.
// Waits for frame boundary when previous Flush is not shown yet (double buffer)
// or scan loop is transmitting (single buffer), so every published frame is shown.
func (self *Driver) Flush() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.buf == nil {
		return ErrNotRunning
	}
	return self.flush()
}

func (self *Driver) flush() error {
	set, err := self.buf.BeginWrite()
	for err == dmabuf.ErrPendingReady {
		// previous frame is not shown yet, wait for scan loop to take it
		select {
		case <-self.buf.Swapped():
		case <-self.sched.StopChan():
			return ErrNotRunning
		}
		set, err = self.buf.BeginWrite()
	}
	if err != nil {
		return err
	}
	if err := self.enc.Encode(self.frame, self.table, self.dither, set); err != nil {
		self.buf.Abort()
		return err
	}
	return self.buf.Publish()
}

func (self *Driver) SetBrightness(b uint8) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.setGamma(self.cfg.Gamma, b, self.cfg.CustomGamma)
}

func (self *Driver) SetGammaMode(m gamma.Mode) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if m == gamma.Custom && len(self.cfg.CustomGamma) == 0 {
		return errors.Annotate(gamma.ErrInvalidTable, "custom mode without table, use SetCustomGamma")
	}
	return self.setGamma(m, self.cfg.Brightness, self.cfg.CustomGamma)
}

func (self *Driver) SetCustomGamma(values []uint16) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.setGamma(gamma.Custom, self.cfg.Brightness, values)
}

// SetIntensity scales base brightness by v in 0..1, table brightness is round(brightness*v).
// Base brightness stays as set by SetBrightness, so intensity can fade and restore it.
func (self *Driver) SetIntensity(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errors.NotValidf("intensity=%v", v)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	old := self.intensity
	self.intensity = v
	if err := self.setGamma(self.cfg.Gamma, self.cfg.Brightness, self.cfg.CustomGamma); err != nil {
		self.intensity = old
		return err
	}
	return nil
}

func (self *Driver) Intensity() float64 {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.intensity
}

func (self *Driver) effective(brightness uint8) uint8 {
	return uint8(math.Round(float64(brightness) * self.intensity))
}

// setGamma rebuilds table when parameters changed, dither state restarts with new table.
// Takes effect on next Flush. Caller holds mu.
func (self *Driver) setGamma(mode gamma.Mode, brightness uint8, custom []uint16) error {
	if !mode.Valid() {
		return errors.NotValidf("gamma mode=%d", mode)
	}
	if self.table == nil {
		// not started, Start builds table
		if mode == gamma.Custom {
			if _, err := gamma.Build(mode, self.effective(brightness), self.cfg.BitDepth, custom); err != nil {
				return err
			}
		}
		self.cfg.Gamma, self.cfg.Brightness, self.cfg.CustomGamma = mode, brightness, custom
		return nil
	}
	table, rebuilt, err := self.gamma.Get(mode, self.effective(brightness), self.cfg.BitDepth, custom)
	if err != nil {
		return err
	}
	self.cfg.Gamma, self.cfg.Brightness, self.cfg.CustomGamma = mode, brightness, custom
	if rebuilt {
		self.table = table
		if self.dither != nil {
			self.dither.Reset()
		}
		self.log.Debugf("hub75 gamma=%s brightness=%d intensity=%.3f", mode, brightness, self.intensity)
	}
	return nil
}

// Gamma returns active table, nil before Start.
func (self *Driver) Gamma() *gamma.Table {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.table
}

// RefreshRate is measured scan frames per second.
func (self *Driver) RefreshRate() float64 {
	self.mu.Lock()
	sched := self.sched
	self.mu.Unlock()
	if sched == nil {
		return 0
	}
	return sched.RefreshRate()
}

func (self *Driver) Stat() Stat {
	self.mu.Lock()
	defer self.mu.Unlock()
	var s Stat
	if self.sched != nil {
		ss := self.sched.Stat()
		s.Frames, s.Units, s.Faults = ss.Frames, ss.Units, ss.Faults
	}
	if self.buf != nil {
		bs := self.buf.Stat()
		s.Swaps, s.Underruns, s.Aborts = bs.Swaps, bs.Underruns, bs.Aborts
	}
	if self.enc != nil {
		s.Encoded = self.enc.Encoded()
	}
	return s
}
