// Package subcmd dispatches hub75 command line to one of modules.
package subcmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/hub75/internal/state"
)

type Mod struct {
	Name  string
	Usage string
	// nil Main means command is handled before config is read
	Main func(context.Context, *state.Config) error
}

// Parse finds module by command name. Error is NotFound for unknown command, NotValid for empty.
func Parse(command string, modules []Mod) (*Mod, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.NotValidf("empty command")
	}
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			return m, nil
		}
	}
	return nil, errors.NotFoundf("command=%s known=%s", command, names(modules))
}

// Usage writes one line per module.
func Usage(w io.Writer, modules []Mod) {
	width := 0
	for _, m := range modules {
		if len(m.Name) > width {
			width = len(m.Name)
		}
	}
	for _, m := range modules {
		fmt.Fprintf(w, "  %-*s  %s\n", width, m.Name, m.Usage)
	}
}

func names(modules []Mod) string {
	ns := make([]string, len(modules))
	for i, m := range modules {
		ns[i] = m.Name
	}
	return strings.Join(ns, ",")
}

// SdNotify reports state to systemd, false when not running under it.
func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
