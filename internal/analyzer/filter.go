package analyzer

import (
	"strings"
	"unicode"
)

// Filter drops relations excluded by opts and prunes capabilities and
// components left without a relation.
func Filter(result *Result, opts AnalyzeOptions) *Result {
	filtered := &Result{}

	capSet := make(map[string]bool)
	compSet := make(map[string]bool)

	for _, rel := range result.Relations {
		capability := rel.Capability
		comp := rel.Component

		if !opts.IncludeStdlib && isStdlib(capability.PkgPath) {
			continue
		}

		if !opts.IncludeUnexported && (isUnexported(capability.Name) || isUnexported(comp.Name)) {
			continue
		}

		if opts.Filter != "" &&
			!strings.HasPrefix(capability.PkgPath, opts.Filter) &&
			!strings.HasPrefix(comp.PkgPath, opts.Filter) {
			continue
		}

		filtered.Relations = append(filtered.Relations, rel)
		capSet[qualifiedName(capability.PkgPath, capability.Name)] = true
		compSet[qualifiedName(comp.PkgPath, comp.Name)] = true
	}

	for i := range result.Capabilities {
		c := &result.Capabilities[i]
		if capSet[qualifiedName(c.PkgPath, c.Name)] {
			filtered.Capabilities = append(filtered.Capabilities, *c)
		}
	}

	for i := range result.Components {
		c := &result.Components[i]
		if compSet[qualifiedName(c.PkgPath, c.Name)] {
			filtered.Components = append(filtered.Components, *c)
		}
	}

	return filtered
}

func isStdlib(pkgPath string) bool {
	// Stdlib packages have no dot in the first path element.
	firstPart, _, _ := strings.Cut(pkgPath, "/")
	return !strings.Contains(firstPart, ".")
}

func isUnexported(name string) bool {
	if name == "" {
		return true
	}
	// error is lowercase but predeclared.
	if name == "error" {
		return false
	}
	return unicode.IsLower(rune(name[0]))
}

func qualifiedName(pkgPath, name string) string {
	return pkgPath + "." + name
}
