package hub75

import (
	"github.com/juju/errors"
	"github.com/temoto/gpio-cdev-go"
	"github.com/temoto/hub75/bcm"
	"github.com/temoto/hub75/helpers"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
	"periph.io/x/periph/conn/physic"
)

const consumerLabel = "hub75"

// Cdev drives panel through Linux GPIO character device, all lines in one handle,
// one ioctl per flush.
type Cdev struct {
	bitbang
	path  string
	pins  panel.Pins
	log   *log2.Log
	chip  gpio.Chiper
	lines gpio.Lineser
	set   [lineCount]gpio.LineSetFunc
	// chip was given by caller, do not close
	external bool
}

func NewCdev(path string, pins panel.Pins, log *log2.Log) *Cdev {
	return &Cdev{path: path, pins: pins, log: log}
}

// NewCdevChip uses already open chip, Close leaves it open.
func NewCdevChip(chip gpio.Chiper, pins panel.Pins, log *log2.Log) *Cdev {
	return &Cdev{chip: chip, pins: pins, log: log, external: true}
}

func (self *Cdev) Open(clock physic.Frequency, phaseInverted bool) error {
	if self.chip == nil {
		chip, err := gpio.Open(self.path, consumerLabel)
		if err != nil {
			return errors.Annotatef(err, "gpio open chip=%s", self.path)
		}
		self.chip = chip
	}
	offsets := lineOffsets(self.pins)
	request := make([]uint32, 0, lineCount)
	for _, o := range offsets {
		if o >= 0 {
			request = append(request, uint32(o))
		}
	}
	lines, err := self.chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, consumerLabel, request...)
	if err != nil {
		err = errors.Annotatef(err, "gpio open lines=%v", request)
		if !self.external {
			if cerr := self.chip.Close(); cerr != nil {
				err = helpers.FoldErrors([]error{err, errors.Annotate(cerr, "gpio close chip")})
			}
			self.chip = nil
		}
		return err
	}
	self.lines = lines
	for i, o := range offsets {
		if o >= 0 {
			self.set[i] = lines.SetFunc(uint32(o))
		}
	}
	self.log.Debugf("hub75 cdev chip=%s lines=%v clock=%s", self.path, request, clock)
	return self.bitbang.start(cdevLines{self}, clock, phaseInverted, self.log)
}

func (self *Cdev) Transmit(u *bcm.Unit) error { return self.bitbang.transmit(u) }
func (self *Cdev) Completion() <-chan error   { return self.bitbang.completion() }

func (self *Cdev) Close() error {
	errs := make([]error, 0, 3)
	if self.lines != nil {
		if err := self.bitbang.stop(); err != nil {
			errs = append(errs, err)
		}
		if err := self.lines.Close(); err != nil {
			errs = append(errs, errors.Annotate(err, "gpio close lines"))
		}
		self.lines = nil
	}
	if self.chip != nil && !self.external {
		if err := self.chip.Close(); err != nil {
			errs = append(errs, errors.Annotate(err, "gpio close chip"))
		}
		self.chip = nil
	}
	return helpers.FoldErrors(errs)
}

type cdevLines struct{ c *Cdev }

func (self cdevLines) set(line int, v byte) {
	if f := self.c.set[line]; f != nil {
		f(v)
	}
}
func (self cdevLines) flush() error { return self.c.lines.Flush() }
