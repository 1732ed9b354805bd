package kpi

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed specs.yaml
var defaultSpecsYAML []byte

// Spec describes how one KPI is located in the statements.
type Spec struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Section  Section  `yaml:"section"`
	Keywords []string `yaml:"keywords"`
}

type specFile struct {
	KPIs []Spec `yaml:"kpis"`
}

var loadDefaults = sync.OnceValues(func() ([]Spec, error) {
	return ParseSpecs(defaultSpecsYAML)
})

// DefaultSpecs returns a copy of the embedded KPI table.
func DefaultSpecs() []Spec {
	specs, err := loadDefaults()
	if err != nil {
		panic(fmt.Sprintf("kpi: embedded specs.yaml: %v", err))
	}
	return cloneSpecs(specs)
}

// LoadSpecs reads a KPI table from a YAML file.
func LoadSpecs(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kpi specs %s: %w", path, err)
	}
	specs, err := ParseSpecs(data)
	if err != nil {
		return nil, fmt.Errorf("kpi specs %s: %w", path, err)
	}
	return specs, nil
}

// ParseSpecs decodes and validates a YAML KPI table. Keywords are lower-cased.
func ParseSpecs(data []byte) ([]Spec, error) {
	var file specFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if len(file.KPIs) == 0 {
		return nil, fmt.Errorf("%w: no kpis declared", ErrInvalidSpec)
	}

	seen := make(map[string]struct{}, len(file.KPIs))
	out := make([]Spec, 0, len(file.KPIs))
	for i, spec := range file.KPIs {
		spec.Key = strings.TrimSpace(spec.Key)
		switch {
		case spec.Key == "":
			return nil, fmt.Errorf("%w: entry %d has no key", ErrInvalidSpec, i)
		case spec.Key == ratiosKey:
			return nil, fmt.Errorf("%w: key %q is reserved", ErrInvalidSpec, spec.Key)
		case !spec.Section.Valid():
			return nil, fmt.Errorf("%w: %s: unknown section %q", ErrInvalidSpec, spec.Key, spec.Section)
		}
		if _, dup := seen[spec.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidSpec, spec.Key)
		}
		seen[spec.Key] = struct{}{}

		keywords := make([]string, 0, len(spec.Keywords))
		for _, kw := range spec.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("%w: %s: no keywords", ErrInvalidSpec, spec.Key)
		}
		spec.Keywords = keywords
		if strings.TrimSpace(spec.Label) == "" {
			spec.Label = spec.Key
		}
		out = append(out, spec)
	}
	return out, nil
}

func cloneSpecs(in []Spec) []Spec {
	out := make([]Spec, len(in))
	for i, s := range in {
		s.Keywords = append([]string(nil), s.Keywords...)
		out[i] = s
	}
	return out
}
