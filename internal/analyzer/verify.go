package analyzer

import (
	"fmt"
	"strings"

	"github.com/olehluchkiv/cavecheck/internal/manifest"
)

// ViolationKind classifies why a provision is not met.
type ViolationKind string

const (
	MissingCapability  ViolationKind = "missing-capability"
	MissingImplementer ViolationKind = "missing-implementer"
	NotImplemented     ViolationKind = "not-implemented"
	PointerOnly        ViolationKind = "pointer-only"
)

// Violation is a provision the analyzed packages do not satisfy.
type Violation struct {
	Provision manifest.Provision
	Kind      ViolationKind
}

func (v Violation) Error() string {
	switch v.Kind {
	case MissingCapability:
		return fmt.Sprintf("%s: capability %s not found", v.Provision, v.Provision.Capability)
	case MissingImplementer:
		return fmt.Sprintf("%s: type %s not found", v.Provision, v.Provision.Implementer)
	case PointerOnly:
		return fmt.Sprintf("%s: only *%s implements %s", v.Provision, v.Provision.Implementer, v.Provision.Capability)
	default:
		return fmt.Sprintf("%s: %s does not implement %s", v.Provision, v.Provision.Implementer, v.Provision.Capability)
	}
}

// Verify checks every provision against result. Names may be bare ("Barer"),
// qualified with the package name ("bar.Barer") or with the import path
// ("example.com/cave/bar.Barer"). Package names are not unique, so use the
// import path when two loaded packages share a name.
func Verify(result *Result, provisions []manifest.Provision) []Violation {
	var violations []Violation
	for _, p := range provisions {
		if kind, ok := verifyOne(result, p); !ok {
			violations = append(violations, Violation{Provision: p, Kind: kind})
		}
	}
	return violations
}

func verifyOne(result *Result, p manifest.Provision) (ViolationKind, bool) {
	if !hasCapability(result, p.Capability) {
		return MissingCapability, false
	}
	if !hasComponent(result, p.Implementer) {
		return MissingImplementer, false
	}

	pointerOnly := false
	for _, rel := range result.Relations {
		if !nameMatches(p.Capability, rel.Capability.PkgPath, rel.Capability.PkgName, rel.Capability.Name) ||
			!nameMatches(p.Implementer, rel.Component.PkgPath, rel.Component.PkgName, rel.Component.Name) {
			continue
		}
		if !rel.ViaPointer || p.Pointer {
			return "", true
		}
		pointerOnly = true
	}
	if pointerOnly {
		return PointerOnly, false
	}
	return NotImplemented, false
}

func hasCapability(result *Result, name string) bool {
	for _, c := range result.Capabilities {
		if nameMatches(name, c.PkgPath, c.PkgName, c.Name) {
			return true
		}
	}
	return false
}

func hasComponent(result *Result, name string) bool {
	for _, c := range result.Components {
		if nameMatches(name, c.PkgPath, c.PkgName, c.Name) {
			return true
		}
	}
	return false
}

func nameMatches(want, pkgPath, pkgName, name string) bool {
	i := strings.LastIndex(want, ".")
	if i < 0 {
		return want == name
	}
	qualifier, n := want[:i], want[i+1:]
	if n != name {
		return false
	}
	if strings.Contains(qualifier, "/") {
		return qualifier == pkgPath
	}
	return qualifier == pkgName
}
