// Package persist keeps small runtime state across restarts in extremofile storage.
package persist

import (
	"encoding"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/extremofile"
	"github.com/temoto/hub75/log2"
)

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Persist binds Stater Load/Store to storage directory root/tag.
// Disabled Persist (empty root) loads nothing and stores nowhere.
type Persist struct {
	mu      sync.Mutex
	log     *log2.Log
	tag     string
	target  Stater
	storage storage
}

func (self *Persist) Init(tag string, target Stater, root string, log *log2.Log) error {
	if tag == "" || target == nil {
		return errors.NotValidf("persist tag=%q target=%v", tag, target)
	}
	self.tag = tag
	self.log = log
	self.target = target
	if root == "" {
		self.log.Debugf("persist %s disabled", tag)
		return nil
	}
	self.storage = extremofile.New(extremofile.Config{
		Dir:      filepath.Join(root, tag),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	return nil
}

func (self *Persist) Enabled() bool { return self.storage != nil }

// Load reads storage into target. Missing data is not an error, target is left as is.
// Main copy damaged with good backup is logged and loaded from backup.
func (self *Persist) Load() error {
	if self.tag == "" {
		return errors.New("code error persist Load before Init")
	}
	if self.storage == nil {
		return nil
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	tbegin := time.Now()
	b, err := self.storage.Read()
	self.log.Debugf("persist %s read duration=%v len=%d", self.tag, time.Since(tbegin), len(b))
	if b == nil {
		return errors.Annotatef(err, "persist %s load", self.tag)
	}
	if err != nil {
		self.log.Errorf("persist %s ignore non-critical storage err=%v", self.tag, err)
	}
	return errors.Annotatef(self.target.UnmarshalBinary(b), "persist %s load", self.tag)
}

func (self *Persist) Store() error {
	if self.tag == "" {
		return errors.New("code error persist Store before Init")
	}
	if self.storage == nil {
		return nil
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	b, err := self.target.MarshalBinary()
	if err == nil {
		tbegin := time.Now()
		_, err = self.storage.Write(b)
		self.log.Debugf("persist %s write duration=%v len=%d", self.tag, time.Since(tbegin), len(b))
	}
	return errors.Annotatef(err, "persist %s store", self.tag)
}
