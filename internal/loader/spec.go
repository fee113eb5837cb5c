package loader

import (
	"fmt"
	"strings"
)

// Kind is a loader family.
type Kind string

const (
	KindForge    Kind = "forge"
	KindNeoForge Kind = "neoforge"
	KindFabric   Kind = "fabric"
	KindQuilt    Kind = "quilt"
)

// Spec is one requested loader.
type Spec struct {
	Kind    Kind
	Version string

	// APIVersion optionally bundles the Fabric API mod. Fabric only.
	APIVersion string
}

func (s Spec) String() string {
	out := string(s.Kind) + ":" + s.Version
	if s.APIVersion != "" {
		out += "+api:" + s.APIVersion
	}
	return out
}

// Validate checks that the spec names a known kind and a version.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindForge, KindNeoForge, KindQuilt:
		if s.APIVersion != "" {
			return fmt.Errorf("loader: %s does not take an API version", s.Kind)
		}
	case KindFabric:
	default:
		return fmt.Errorf("loader: unknown kind %q", s.Kind)
	}
	if s.Version == "" {
		return fmt.Errorf("loader: %s requires a version", s.Kind)
	}
	return nil
}

// ParseSpec parses "kind:version" or "fabric:version+api:apiVersion".
func ParseSpec(s string) (Spec, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Spec{}, fmt.Errorf("loader: invalid spec %q, want kind:version", s)
	}
	spec := Spec{Kind: Kind(strings.ToLower(kind))}
	if version, api, ok := strings.Cut(rest, "+api:"); ok {
		spec.Version, spec.APIVersion = version, api
	} else {
		spec.Version = rest
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}
