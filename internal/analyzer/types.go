package analyzer

import "go/types"

// Capability is a named interface with at least one method.
type Capability struct {
	Name       string
	PkgPath    string
	PkgName    string
	Methods    []MethodSig
	TypeObj    *types.Interface
	SourceFile string
}

// Component is a named concrete type that may implement capabilities.
type Component struct {
	Name       string
	PkgPath    string
	PkgName    string
	IsStruct   bool
	Methods    []MethodSig
	TypeObj    *types.Named
	SourceFile string
}

// MethodSig captures a method name and its signature string.
type MethodSig struct {
	Name      string
	Signature string
}

// Relation records that a component implements a capability.
type Relation struct {
	Component  *Component
	Capability *Capability
	ViaPointer bool // only *T, not T, satisfies the capability
}

// Result holds everything discovered in one analysis.
type Result struct {
	Capabilities []Capability
	Components   []Component
	Relations    []Relation
}

// AnalyzeOptions controls analysis behavior.
type AnalyzeOptions struct {
	Patterns          []string // package patterns relative to dir; defaults to ./...
	Filter            string   // package path prefix filter
	IncludeStdlib     bool
	IncludeUnexported bool
}

func (o AnalyzeOptions) patterns() []string {
	if len(o.Patterns) == 0 {
		return []string{"./..."}
	}
	return o.Patterns
}
