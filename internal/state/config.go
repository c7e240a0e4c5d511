package state

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/hub75/gamma"
	"github.com/temoto/hub75/helpers"
	"github.com/temoto/hub75/log2"
	"github.com/temoto/hub75/panel"
)

type Config struct {
	// includeSeen contains normalized paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Log struct {
		Level string `hcl:"level"`
	}
	Panel     PanelConfig     `hcl:"panel"`
	Transport TransportConfig `hcl:"transport"`
	Persist   struct {
		Root string `hcl:"root"`
	}

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

type TransportConfig struct {
	// cdev, periph or mock
	Kind string `hcl:"kind"`
	Chip string `hcl:"chip"`
}

const (
	TransportCdev   = "cdev"
	TransportPeriph = "periph"
	TransportMock   = "mock"

	DefaultChip = "/dev/gpiochip0"
)

func newConfig() *Config {
	c := &Config{
		includeSeen: make(map[string]struct{}),
		Panel:       DefaultPanelConfig(),
	}
	c.Log.Level = "info"
	c.Transport.Kind = TransportCdev
	c.Transport.Chip = DefaultChip
	return c
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil && !source.Optional {
		err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if err = hcl.Unmarshal(bs, c); err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs)))
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		if _, ok := c.includeSeen[fs.Normalize(include.Name)]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig merges sources in order, later values overwrite earlier.
// Values not mentioned in any source keep defaults.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.New("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := newConfig()
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

// PanelConfig is panel section as written in config file.
type PanelConfig struct {
	Width              int        `hcl:"width"`
	Height             int        `hcl:"height"`
	ChainLength        int        `hcl:"chain_length"`
	Scan               string     `hcl:"scan"`
	Clock              string     `hcl:"clock"`
	MinRefresh         string     `hcl:"min_refresh"`
	BitDepth           int        `hcl:"bit_depth"`
	PlaneOrder         string     `hcl:"plane_order"`
	DoubleBuffer       bool       `hcl:"double_buffer"`
	TemporalDither     bool       `hcl:"temporal_dither"`
	Gamma              string     `hcl:"gamma"`
	CustomGamma        []int      `hcl:"custom_gamma"`
	Brightness         int        `hcl:"brightness"`
	LatchBlanking      int        `hcl:"latch_blanking"`
	ClockPhaseInverted bool       `hcl:"clock_phase_inverted"`
	Pins               panel.Pins `hcl:"pins"`
}

func DefaultPanelConfig() PanelConfig {
	d := panel.Default()
	return PanelConfig{
		Width:         d.Width,
		Height:        d.Height,
		ChainLength:   d.ChainLength,
		Scan:          d.Scan.String(),
		Clock:         d.OutputClock.String(),
		MinRefresh:    d.MinRefresh.String(),
		BitDepth:      d.BitDepth,
		PlaneOrder:    d.PlaneOrder.String(),
		DoubleBuffer:  d.DoubleBuffer,
		Gamma:         d.Gamma.String(),
		Brightness:    int(d.Brightness),
		LatchBlanking: d.LatchBlanking,
		Pins:          d.Pins,
	}
}

// Panel parses text fields. Result is not validated yet, see panel.Config.Validate.
func (pc *PanelConfig) Panel() (panel.Config, error) {
	c := panel.Default()
	errs := make([]error, 0, 4)
	var err error

	c.Width, c.Height, c.ChainLength = pc.Width, pc.Height, pc.ChainLength
	c.BitDepth = pc.BitDepth
	c.DoubleBuffer = pc.DoubleBuffer
	c.TemporalDither = pc.TemporalDither
	c.LatchBlanking = pc.LatchBlanking
	c.ClockPhaseInverted = pc.ClockPhaseInverted
	c.Pins = pc.Pins

	if c.Scan, err = panel.ParseScanPattern(pc.Scan); err != nil {
		errs = append(errs, errors.Annotate(err, "panel.scan"))
	}
	if err = c.OutputClock.Set(pc.Clock); err != nil {
		errs = append(errs, errors.Annotatef(err, "panel.clock=%q", pc.Clock))
	}
	if err = c.MinRefresh.Set(pc.MinRefresh); err != nil {
		errs = append(errs, errors.Annotatef(err, "panel.min_refresh=%q", pc.MinRefresh))
	}
	if c.PlaneOrder, err = panel.ParsePlaneOrder(pc.PlaneOrder); err != nil {
		errs = append(errs, errors.Annotate(err, "panel.plane_order"))
	}
	if c.Gamma, err = gamma.ParseMode(pc.Gamma); err != nil {
		errs = append(errs, errors.Annotate(err, "panel.gamma"))
	}
	if pc.Brightness < 0 || pc.Brightness > 255 {
		errs = append(errs, errors.NotValidf("panel.brightness=%d", pc.Brightness))
	}
	c.Brightness = uint8(pc.Brightness)
	if len(pc.CustomGamma) != 0 {
		c.CustomGamma = make([]uint16, len(pc.CustomGamma))
		for i, v := range pc.CustomGamma {
			if v < 0 || v > 0xffff {
				errs = append(errs, errors.NotValidf("panel.custom_gamma[%d]=%d", i, v))
				break
			}
			c.CustomGamma[i] = uint16(v)
		}
	}
	return c, helpers.FoldErrors(errs)
}
