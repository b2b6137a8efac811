package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the manifest file looked up in the module root.
const DefaultPath = "cave.yaml"

// Manifest declares the capabilities each layer's packages must provide.
type Manifest struct {
	Layers []LayerSpec `yaml:"layers"`
}

// LayerSpec describes one layer: which packages to load and what they provide.
type LayerSpec struct {
	Name     string      `yaml:"name"`
	Packages []string    `yaml:"packages"`
	Provides []Provision `yaml:"provides"`
}

// Provision states that Implementer satisfies Capability. Pointer allows
// only *Implementer to satisfy it.
type Provision struct {
	Capability  string `yaml:"capability"`
	Implementer string `yaml:"implementer"`
	Pointer     bool   `yaml:"pointer,omitempty"`
}

func (p Provision) String() string {
	impl := p.Implementer
	if p.Pointer {
		impl = "*" + impl
	}
	return fmt.Sprintf("%s <- %s", p.Capability, impl)
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every layer is named uniquely and declares at least
// one package and one complete provision.
func (m *Manifest) Validate() error {
	if len(m.Layers) == 0 {
		return errors.New("manifest declares no layers")
	}

	var errs []error
	seen := make(map[string]bool)
	for i, l := range m.Layers {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("layer %d: name is required", i))
		} else if seen[l.Name] {
			errs = append(errs, fmt.Errorf("layer %d: duplicate name %q", i, l.Name))
		}
		seen[l.Name] = true

		if len(l.Packages) == 0 {
			errs = append(errs, fmt.Errorf("layer %q: at least one package pattern is required", l.Name))
		}
		if len(l.Provides) == 0 {
			errs = append(errs, fmt.Errorf("layer %q: at least one provision is required", l.Name))
		}
		for j, p := range l.Provides {
			if p.Capability == "" || p.Implementer == "" {
				errs = append(errs, fmt.Errorf("layer %q: provision %d: capability and implementer are required", l.Name, j))
			}
		}
	}
	return errors.Join(errs...)
}
