package analyzer

import (
	"context"
	"fmt"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"
)

// stdlibPatterns are loaded alongside the module when stdlib capabilities are requested.
var stdlibPatterns = []string{"fmt", "io", "io/fs", "encoding", "encoding/json", "sort", "hash", "context"}

// Analyze loads the packages matched by opts under dir and finds every
// component that implements a capability.
func Analyze(ctx context.Context, dir string, opts AnalyzeOptions, logger *slog.Logger) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo | packages.NeedImports,
		Dir:     dir,
		Context: ctx,
	}

	pkgs, err := packages.Load(cfg, opts.patterns()...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	if opts.IncludeStdlib {
		stdPkgs, stdErr := packages.Load(cfg, stdlibPatterns...)
		if stdErr != nil {
			logger.Warn("failed to load stdlib packages", "error", stdErr)
		} else {
			pkgs = append(pkgs, stdPkgs...)
		}
	}

	logger.Info("packages loaded", "packages_count", len(pkgs), "patterns", opts.patterns())

	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			logger.Warn("package load error", "package", pkg.PkgPath, "error", e.Msg)
		}
	}

	c := newCollector(dir, logger)
	for _, pkg := range pkgs {
		if pkg.Types == nil {
			continue
		}
		c.collectPackage(pkg.Types.Scope(), pkg.PkgPath, pkg.Name, pkg.Fset, true)

		// Capabilities from imports can be implemented by local components.
		for _, imp := range pkg.Imports {
			if imp.Types == nil {
				continue
			}
			c.collectPackage(imp.Types.Scope(), imp.PkgPath, imp.Name, imp.Fset, false)
		}
	}
	c.collectBuiltinError()

	logger.Info("types collected", "capabilities", len(c.capabilities), "components", len(c.components))

	relations := matchRelations(c.capabilities, c.components, logger)

	logger.Info("analysis complete", "relations", len(relations))

	return &Result{
		Capabilities: c.capabilities,
		Components:   c.components,
		Relations:    relations,
	}, nil
}

type collector struct {
	dir          string
	logger       *slog.Logger
	capabilities []Capability
	components   []Component
	seen         map[string]bool // pkgPath.Name
}

func newCollector(dir string, logger *slog.Logger) *collector {
	return &collector{
		dir:    dir,
		logger: logger,
		seen:   make(map[string]bool),
	}
}

// collectPackage records the capabilities declared in scope and, when
// withComponents is set, its concrete named types.
func (c *collector) collectPackage(scope *types.Scope, pkgPath, pkgName string, fset *token.FileSet, withComponents bool) {
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok {
			continue
		}

		key := pkgPath + "." + tn.Name()
		if iface, ok := named.Underlying().(*types.Interface); ok {
			if c.seen[key] {
				continue
			}
			c.seen[key] = true
			c.capabilities = append(c.capabilities, Capability{
				Name:       tn.Name(),
				PkgPath:    pkgPath,
				PkgName:    pkgName,
				Methods:    extractIfaceMethods(iface),
				TypeObj:    iface,
				SourceFile: resolveSourceFile(fset, tn.Pos(), c.dir),
			})
			c.logger.Debug("found capability", "name", tn.Name(), "package", pkgPath, "methods", iface.NumMethods())
			continue
		}

		if !withComponents || c.seen[key] {
			continue
		}
		c.seen[key] = true
		methods := extractTypeMethods(named)
		c.components = append(c.components, Component{
			Name:       tn.Name(),
			PkgPath:    pkgPath,
			PkgName:    pkgName,
			IsStruct:   isStruct(named),
			Methods:    methods,
			TypeObj:    named,
			SourceFile: resolveSourceFile(fset, tn.Pos(), c.dir),
		})
		c.logger.Debug("found component", "name", tn.Name(), "package", pkgPath, "methods", len(methods))
	}
}

func (c *collector) collectBuiltinError() {
	const key = "builtin.error"
	if c.seen[key] {
		return
	}
	tn, ok := types.Universe.Lookup("error").(*types.TypeName)
	if !ok {
		return
	}
	iface, ok := tn.Type().Underlying().(*types.Interface)
	if !ok {
		return
	}
	c.seen[key] = true
	c.capabilities = append(c.capabilities, Capability{
		Name:    "error",
		PkgPath: "builtin",
		PkgName: "builtin",
		Methods: extractIfaceMethods(iface),
		TypeObj: iface,
	})
}

func matchRelations(capabilities []Capability, components []Component, logger *slog.Logger) []Relation {
	var methodSetCache typeutil.MethodSetCache
	var relations []Relation

	for i := range components {
		comp := &components[i]
		valType := comp.TypeObj
		valMethodSet := methodSetCache.MethodSet(valType)
		ptrMethodSet := methodSetCache.MethodSet(types.NewPointer(valType))

		for j := range capabilities {
			capability := &capabilities[j]

			// The empty interface is satisfied by everything.
			if capability.TypeObj.NumMethods() == 0 {
				continue
			}

			viaPointer := false
			switch {
			case types.Implements(valType, capability.TypeObj) || matchesMethodSet(valMethodSet, capability.TypeObj):
			case types.Implements(types.NewPointer(valType), capability.TypeObj) || matchesMethodSet(ptrMethodSet, capability.TypeObj):
				viaPointer = true
			default:
				continue
			}

			relations = append(relations, Relation{
				Component:  comp,
				Capability: capability,
				ViaPointer: viaPointer,
			})
			logger.Debug("match found", "component", comp.Name, "capability", capability.Name, "via_pointer", viaPointer)
		}
	}
	return relations
}

func extractIfaceMethods(iface *types.Interface) []MethodSig {
	methods := make([]MethodSig, iface.NumMethods())
	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		methods[i] = MethodSig{
			Name:      m.Name(),
			Signature: formatSignature(m),
		}
	}
	return methods
}

func extractTypeMethods(named *types.Named) []MethodSig {
	var methods []MethodSig
	for i := 0; i < named.NumMethods(); i++ {
		m := named.Method(i)
		methods = append(methods, MethodSig{
			Name:      m.Name(),
			Signature: formatSignature(m),
		})
	}
	return methods
}

func formatSignature(fn *types.Func) string {
	sig := fn.Type().(*types.Signature)
	var b strings.Builder
	b.WriteString(fn.Name())
	writeTuple(&b, sig.Params(), true)
	results := sig.Results()
	if results.Len() > 0 {
		b.WriteString(" ")
		writeTuple(&b, results, results.Len() > 1)
	}
	return b.String()
}

func writeTuple(b *strings.Builder, tuple *types.Tuple, parens bool) {
	if parens {
		b.WriteString("(")
	}
	for i := 0; i < tuple.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(shortType(tuple.At(i).Type()))
	}
	if parens {
		b.WriteString(")")
	}
}

func shortType(t types.Type) string {
	return types.TypeString(t, func(pkg *types.Package) string {
		return pkg.Name()
	})
}

func isStruct(named *types.Named) bool {
	_, ok := named.Underlying().(*types.Struct)
	return ok
}

// matchesMethodSet reports whether mset has every method of iface with the
// same signature. Signatures are compared textually by package path when the
// type objects differ, since a package loaded twice yields distinct objects.
func matchesMethodSet(mset *types.MethodSet, iface *types.Interface) bool {
	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		sel := mset.Lookup(m.Pkg(), m.Name())
		if sel == nil {
			return false
		}
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !sameSignature(fn.Type().(*types.Signature), m.Type().(*types.Signature)) {
			return false
		}
	}
	return true
}

// sameSignature compares parameters, results and variadicity, ignoring receivers.
func sameSignature(a, b *types.Signature) bool {
	if types.Identical(a, b) {
		return true
	}
	if a.Variadic() != b.Variadic() {
		return false
	}
	return tupleString(a.Params()) == tupleString(b.Params()) &&
		tupleString(a.Results()) == tupleString(b.Results())
}

// tupleString lists the tuple's types by full package path, without names.
func tupleString(t *types.Tuple) string {
	qual := types.RelativeTo(nil)
	parts := make([]string, t.Len())
	for i := range parts {
		parts[i] = types.TypeString(t.At(i).Type(), qual)
	}
	return strings.Join(parts, ", ")
}

// resolveSourceFile returns the file at pos relative to moduleRoot.
func resolveSourceFile(fset *token.FileSet, pos token.Pos, moduleRoot string) string {
	if fset == nil || !pos.IsValid() {
		return ""
	}
	position := fset.Position(pos)
	if !position.IsValid() || position.Filename == "" {
		return ""
	}
	rel, err := filepath.Rel(moduleRoot, position.Filename)
	if err != nil {
		return position.Filename
	}
	return rel
}
