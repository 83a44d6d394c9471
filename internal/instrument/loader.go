package instrument

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// Parse decodes a YAML definition and validates it. Unknown keys are rejected
// so that typos in a definition surface at load time.
func Parse(r io.Reader) (*Instrument, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Instrument
	if err := dec.Decode(&def); err != nil {
		return nil, &ConfigurationError{Instrument: def.ID, Problems: []string{fmt.Sprintf("parse yaml: %v", err)}}
	}
	return Build(def)
}

// Catalog is the set of instruments available to sessions.
type Catalog struct {
	byID map[string]*Instrument
	ids  []string
}

// NewCatalog indexes already built instruments. Duplicate ids are an error.
func NewCatalog(instruments ...*Instrument) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Instrument, len(instruments))}
	for _, in := range instruments {
		if !in.Validated() {
			return nil, &ConfigurationError{Instrument: in.ID, Problems: []string{"instrument was not built"}}
		}
		if _, dup := c.byID[in.ID]; dup {
			return nil, &ConfigurationError{Instrument: in.ID, Problems: []string{"duplicate instrument id"}}
		}
		c.byID[in.ID] = in
		c.ids = append(c.ids, in.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Get returns the instrument with the given id.
func (c *Catalog) Get(id string) (*Instrument, error) {
	in, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: instrument %q", ErrNotFound, id)
	}
	return in, nil
}

// List returns every instrument ordered by id.
func (c *Catalog) List() []*Instrument {
	out := make([]*Instrument, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// LoadFS parses every *.yaml / *.yml file in dir. All files are attempted and
// their errors joined, so one run reports every broken definition.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read instrument dir %s: %w", dir, err)
	}

	var (
		instruments []*Instrument
		errs        []error
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		in, err := loadFile(fsys, path.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		instruments = append(instruments, in)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("%w: no instrument definitions in %s", ErrConfiguration, dir)
	}
	return NewCatalog(instruments...)
}

// LoadDir loads definitions from a directory on disk.
func LoadDir(dir string) (*Catalog, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// Default loads the definitions compiled into the binary.
func Default() (*Catalog, error) {
	return LoadFS(definitions, "definitions")
}

func loadFile(fsys fs.FS, name string) (*Instrument, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
