// Package diagram renders analysis results as Mermaid class diagrams.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olehluchkiv/cavecheck/internal/analyzer"
)

// Options controls Mermaid generation.
type Options struct {
	MaxMethods  int  // per capability box, 0 means unlimited
	IncludeInit bool // emit the %%{init:}%% directive for standalone .mmd files
}

// DefaultOptions returns the options used by the graph command.
func DefaultOptions() Options {
	return Options{MaxMethods: 5}
}

// Mermaid renders result as a classDiagram. Capabilities carry the
// <<interface>> annotation; components satisfied only through a pointer are
// linked with a dashed arrow.
func Mermaid(result *analyzer.Result, opts Options) string {
	caps := append([]analyzer.Capability(nil), result.Capabilities...)
	sort.Slice(caps, func(i, j int) bool {
		return NodeID(caps[i].PkgName, caps[i].Name) < NodeID(caps[j].PkgName, caps[j].Name)
	})

	comps := append([]analyzer.Component(nil), result.Components...)
	sort.Slice(comps, func(i, j int) bool {
		return NodeID(comps[i].PkgName, comps[i].Name) < NodeID(comps[j].PkgName, comps[j].Name)
	})

	rels := make([]string, 0, len(result.Relations))
	for _, rel := range result.Relations {
		arrow := "--|>"
		if rel.ViaPointer {
			arrow = "..|>"
		}
		rels = append(rels, fmt.Sprintf("    %s %s %s",
			NodeID(rel.Component.PkgName, rel.Component.Name), arrow,
			NodeID(rel.Capability.PkgName, rel.Capability.Name)))
	}
	sort.Strings(rels)

	var b strings.Builder
	if opts.IncludeInit {
		b.WriteString("%%{init: {'theme': 'base', 'themeVariables': {'primaryColor': '#ffffff', 'lineColor': '#555555'}}}%%\n")
	}
	b.WriteString("classDiagram\n")
	if len(caps) == 0 && len(comps) == 0 {
		return b.String()
	}
	b.WriteString("    direction LR\n")

	for _, c := range caps {
		fmt.Fprintf(&b, "    class %s {\n", NodeID(c.PkgName, c.Name))
		b.WriteString("        <<interface>>\n")
		if c.SourceFile != "" {
			fmt.Fprintf(&b, "        %%%% file: %s\n", c.SourceFile)
		}
		writeMethods(&b, c.Methods, opts.MaxMethods)
		b.WriteString("    }\n")
	}
	for _, c := range comps {
		fmt.Fprintf(&b, "    class %s {\n", NodeID(c.PkgName, c.Name))
		if c.SourceFile != "" {
			fmt.Fprintf(&b, "        %%%% file: %s\n", c.SourceFile)
		}
		b.WriteString("    }\n")
	}
	for _, r := range rels {
		b.WriteString(r)
		b.WriteString("\n")
	}
	return b.String()
}

func writeMethods(b *strings.Builder, methods []analyzer.MethodSig, limit int) {
	n := len(methods)
	if limit > 0 && n > limit {
		n = limit
	}
	for _, m := range methods[:n] {
		fmt.Fprintf(b, "        +%s\n", SanitizeSignature(m.Signature))
	}
	if n < len(methods) {
		b.WriteString("        ...\n")
	}
}

// SanitizeSignature removes characters Mermaid treats as markup in class labels.
func SanitizeSignature(sig string) string {
	sig = strings.ReplaceAll(sig, "<-chan", "chan")
	// "interface" is reserved by the <<interface>> annotation parser.
	sig = strings.ReplaceAll(sig, "interface{}", "any")
	return strings.ReplaceAll(sig, "{}", "")
}

// NodeID builds a Mermaid-safe identifier for pkgName.name. Two loaded
// packages with the same name share node IDs; narrow the analysis with
// --packages or --filter when that happens.
func NodeID(pkgName, name string) string {
	return strings.NewReplacer("/", "_", ".", "_", "-", "_").Replace(pkgName + "_" + name)
}
