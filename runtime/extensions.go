package runtime

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/weftworks/weft/config"
	"github.com/weftworks/weft/errors"
	"github.com/weftworks/weft/registrar"
)

// ExtensionBuilder populates a registrar with one extension's types. The
// runtime calls RegisterExtension after the builder returns.
type ExtensionBuilder func(r *registrar.Registrar) error

// builders is the process-wide extension catalog. Extensions register
// themselves from init, the way drivers register with database/sql.
var builders = struct {
	sync.RWMutex
	byName map[string]ExtensionBuilder
}{byName: make(map[string]ExtensionBuilder)}

// RegisterExtensionBuilder makes an extension loadable by name. Registering
// the same name twice panics: it is a wiring bug, not a runtime condition.
func RegisterExtensionBuilder(name string, builder ExtensionBuilder) {
	builders.Lock()
	defer builders.Unlock()
	if _, exists := builders.byName[name]; exists {
		panic(fmt.Sprintf("extension builder %q registered twice", name))
	}
	builders.byName[name] = builder
}

func lookupBuilder(name string) (ExtensionBuilder, bool) {
	builders.RLock()
	defer builders.RUnlock()
	b, ok := builders.byName[name]
	return b, ok
}

// LoadExtensions loads extensions by name and from manifest files. Named
// extensions resolve directly against the builder catalog; manifests are
// parsed and validated first, then each entry's name is resolved the same
// way. Loading stops at the first failure.
func (r *Runtime) LoadExtensions(extensionNames, manifestPaths []string, baseDir string) error {
	for _, name := range extensionNames {
		if err := r.loadOne(name, nil); err != nil {
			return err
		}
	}

	if len(manifestPaths) == 0 {
		return nil
	}
	manifest, err := config.LoadManifests(manifestPaths, baseDir)
	if err != nil {
		return err
	}
	for _, ext := range manifest.Extensions {
		if err := r.loadOne(ext.Name, ext.Components); err != nil {
			return err
		}
	}
	return nil
}

// loadOne resolves and runs one extension builder, then cross-checks any
// fixed type ids the manifest declares against what the builder actually
// allocated.
func (r *Runtime) loadOne(name string, declared []config.ComponentEntry) error {
	builder, ok := lookupBuilder(name)
	if !ok {
		return errors.WrapConfig(
			fmt.Errorf("%w: extension %q", errors.ErrTypeUnregistered, name),
			"Runtime", "LoadExtensions", "builder lookup")
	}

	reg := r.Registrar()
	if err := builder(reg); err != nil {
		return errors.WrapRegistrar(err, "Runtime", "LoadExtensions", "extension build")
	}

	for _, entry := range declared {
		if entry.ID == "" {
			continue
		}
		id, err := parseTypeID(entry.ID)
		if err != nil {
			return errors.WrapConfig(err, "Runtime", "LoadExtensions", "manifest id parse")
		}
		if id.IsZero() {
			return errors.WrapConfig(
				fmt.Errorf("%w: manifest declares the zero id for %q", errors.ErrReservedTypeID, entry.TypeName),
				"Runtime", "LoadExtensions", "manifest cross-check")
		}
		if !reg.IsAllocated(id, registrar.KindComponent) {
			return errors.WrapConfig(
				fmt.Errorf("manifest declares id %s for %q but extension %q never allocated it",
					id, entry.TypeName, name),
				"Runtime", "LoadExtensions", "manifest cross-check")
		}
	}

	if err := reg.RegisterExtension(); err != nil {
		return err
	}

	r.logger.Info("extension loaded", "extension", name)
	return nil
}

// parseTypeID parses the manifest id format: two hex halves joined by a
// dash.
func parseTypeID(s string) (registrar.TypeID, error) {
	hi, lo, ok := strings.Cut(s, "-")
	if !ok {
		return registrar.TypeID{}, fmt.Errorf("malformed type id %q", s)
	}
	h, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return registrar.TypeID{}, fmt.Errorf("malformed type id %q: %w", s, err)
	}
	l, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return registrar.TypeID{}, fmt.Errorf("malformed type id %q: %w", s, err)
	}
	return registrar.TypeID{Hi: h, Lo: l}, nil
}
