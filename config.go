package container

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ContainerOptions configures the struct-tag vocabulary and the
// implementation-defined behaviors spec.md leaves as open questions.
// It can be constructed with DefaultOptions or loaded from a YAML file
// with LoadOptions, the way unified-workflow's internal/config package
// loads DIConfig.
type ContainerOptions struct {
	// StrictConstructorResolution makes ambiguous constructor resolution
	// (two candidates tied at the minimum type-difference weight) an
	// error. When false (lenient), the first lowest-weight candidate wins.
	StrictConstructorResolution bool `yaml:"strict_constructor_resolution"`

	// AllowRawInjectionDespiteWrapping preserves the open-question behavior
	// of spec.md §9: when initialization replaces the early-exposed
	// reference (e.g. a proxy is installed) and something already observed
	// the raw reference, allow the swap with a warning instead of failing.
	AllowRawInjectionDespiteWrapping bool `yaml:"allow_raw_injection_despite_wrapping"`

	// AllowCircularReferences enables the three-level early-reference cache
	// for singleton cycles resolved through field/setter injection.
	// Constructor-argument cycles always fail regardless of this flag.
	AllowCircularReferences bool `yaml:"allow_circular_references"`

	// AllowNonPublicAccess permits the creation engine and metadata scanner
	// to use unexported constructors, fields, and methods.
	AllowNonPublicAccess bool `yaml:"allow_non_public_access"`

	// Struct-tag names, configurable so embedding applications can avoid
	// collisions with their own tag vocabulary. InjectTag, QualifierTag,
	// ScopeTag and RequiredTag are read from struct fields; InitTag,
	// DestroyTag and LookupTag are not read anywhere (init/destroy
	// callbacks and lookup overrides are registered through
	// RegisterLifecycleMethods and RegisterLookupMethod).
	InjectTag    string `yaml:"inject_tag"`
	QualifierTag string `yaml:"qualifier_tag"`
	ScopeTag     string `yaml:"scope_tag"`
	InitTag      string `yaml:"init_tag"`
	DestroyTag   string `yaml:"destroy_tag"`
	LookupTag    string `yaml:"lookup_tag"`
	RequiredTag  string `yaml:"required_tag"`
}

// DefaultOptions returns the container's default behavior: lenient
// constructor resolution, circular references allowed, raw-injection-
// despite-wrapping disallowed, public-only reflective access, and the
// struct-tag names used throughout this package's own tests.
func DefaultOptions() *ContainerOptions {
	return &ContainerOptions{
		StrictConstructorResolution:      false,
		AllowRawInjectionDespiteWrapping: false,
		AllowCircularReferences:          true,
		AllowNonPublicAccess:             false,
		InjectTag:                        "inject",
		QualifierTag:                     "qualifier",
		ScopeTag:                         "scope",
		InitTag:                          "init",
		DestroyTag:                       "destroy",
		LookupTag:                        "lookup",
		RequiredTag:                      "required",
	}
}

// LoadOptions reads a YAML file into a ContainerOptions, starting from
// DefaultOptions so an incomplete file still yields sane defaults.
func LoadOptions(path string) (*ContainerOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, err
	}
	return opts, nil
}
