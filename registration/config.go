// Package registration registers the "Drop for Symlink" shell extension as a
// COM class and serves its entry points: register, unregister, install and
// class-object lookup.
package registration

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/joshuapare/regbatch/batch"
	"github.com/joshuapare/regbatch/store"
)

// Defaults of the shipped extension.
var (
	DefaultCLSID = uuid.MustParse("96D16936-E510-4EA4-8EE8-BC9C0BD7057B")
)

const (
	DefaultName           = "Drop for Symlink"
	DefaultThreadingModel = "Apartment"
)

// Registry locations, relative to HKEY_LOCAL_MACHINE.
const (
	clsidKey     = `SOFTWARE\Classes\CLSID`
	dropHandlers = `SOFTWARE\Classes\Directory\ShellEx\DragDropHandlers`
	approvedKey  = `SOFTWARE\Microsoft\Windows\CurrentVersion\Shell Extensions\Approved`
	inprocKey    = "InProcServer32"
	threadingVal = "ThreadingModel"
)

var (
	errNoCLSID  = errors.New("registration: CLSID is not set")
	errNoName   = errors.New("registration: name is not set")
	errNoModule = errors.New("registration: module path is not set")
)

// Config identifies the class being registered.
type Config struct {
	CLSID          uuid.UUID
	Name           string
	ModulePath     string
	ThreadingModel string
}

// DefaultConfig returns the shipped extension's settings for the module at
// modulePath.
func DefaultConfig(modulePath string) Config {
	return Config{
		CLSID:          DefaultCLSID,
		Name:           DefaultName,
		ModulePath:     modulePath,
		ThreadingModel: DefaultThreadingModel,
	}
}

// Validate reports missing settings.
func (c Config) Validate() error {
	switch {
	case c.CLSID == uuid.Nil:
		return errNoCLSID
	case c.Name == "":
		return errNoName
	case c.ModulePath == "":
		return errNoModule
	}
	return nil
}

// ClassString renders the CLSID in registry form: upper-case, in braces.
func (c Config) ClassString() string {
	return "{" + strings.ToUpper(c.CLSID.String()) + "}"
}

// Batch returns the registration tree under root, which must be
// HKEY_LOCAL_MACHINE. The Approved key is expected to exist already; the
// other keys are created.
func (c Config) Batch(root store.Key) *batch.Batch {
	class := c.ClassString()
	threading := c.ThreadingModel
	if threading == "" {
		threading = DefaultThreadingModel
	}
	return batch.New(root,
		batch.Create(store.JoinPath(clsidKey, class),
			batch.Default(batch.Str(c.Name+" Factory")),
			batch.Create(inprocKey,
				batch.Default(batch.Str(c.ModulePath)),
				batch.Set(threadingVal, batch.Str(threading)),
			),
		),
		batch.Create(store.JoinPath(dropHandlers, c.Name),
			batch.Default(batch.Str(class)),
		),
		batch.Open(approvedKey,
			batch.Set(class, batch.Str(c.Name)),
		),
	)
}
