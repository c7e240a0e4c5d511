package persist

import (
	"sync"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/hub75/gamma"
)

// settingsMessage is wire form of Settings.
type settingsMessage struct {
	Brightness  uint32   `protobuf:"varint,1,opt,name=brightness,proto3" json:"brightness,omitempty"`
	GammaMode   uint32   `protobuf:"varint,2,opt,name=gamma_mode,json=gammaMode,proto3" json:"gamma_mode,omitempty"`
	CustomGamma []uint32 `protobuf:"varint,3,rep,packed,name=custom_gamma,json=customGamma,proto3" json:"custom_gamma,omitempty"`
	// Set distinguishes stored zero brightness from empty message.
	Set bool `protobuf:"varint,4,opt,name=set,proto3" json:"set,omitempty"`
}

func (m *settingsMessage) Reset()         { *m = settingsMessage{} }
func (m *settingsMessage) String() string { return proto.CompactTextString(m) }
func (*settingsMessage) ProtoMessage()    {}

func (m *settingsMessage) marshal() ([]byte, error) { return proto.Marshal(m) }

// Settings are runtime display adjustments which survive restart.
type Settings struct {
	mu          sync.Mutex
	set         bool
	brightness  uint8
	mode        gamma.Mode
	customGamma []uint16
}

// Get returns stored values, ok=false if nothing was stored or loaded yet.
func (self *Settings) Get() (brightness uint8, mode gamma.Mode, custom []uint16, ok bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.brightness, self.mode, append([]uint16(nil), self.customGamma...), self.set
}

func (self *Settings) Set(brightness uint8, mode gamma.Mode, custom []uint16) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.set = true
	self.brightness = brightness
	self.mode = mode
	self.customGamma = append([]uint16(nil), custom...)
}

func (self *Settings) MarshalBinary() ([]byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	m := settingsMessage{
		Set:        self.set,
		Brightness: uint32(self.brightness),
		GammaMode:  uint32(self.mode),
	}
	if len(self.customGamma) != 0 {
		m.CustomGamma = make([]uint32, len(self.customGamma))
		for i, v := range self.customGamma {
			m.CustomGamma[i] = uint32(v)
		}
	}
	return m.marshal()
}

func (self *Settings) UnmarshalBinary(b []byte) error {
	var m settingsMessage
	if err := proto.Unmarshal(b, &m); err != nil {
		return errors.Trace(err)
	}
	mode := gamma.Mode(m.GammaMode)
	if m.Brightness > 255 || !mode.Valid() {
		return errors.NotValidf("settings brightness=%d gamma=%d", m.Brightness, m.GammaMode)
	}
	custom := make([]uint16, len(m.CustomGamma))
	for i, v := range m.CustomGamma {
		if v > 0xffff {
			return errors.NotValidf("settings custom_gamma[%d]=%d", i, v)
		}
		custom[i] = uint16(v)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	self.set = m.Set
	self.brightness = uint8(m.Brightness)
	self.mode = mode
	self.customGamma = custom
	return nil
}

var _ Stater = &Settings{}
