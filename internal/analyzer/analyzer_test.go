package analyzer

import (
	"context"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/types/typeutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testdataDir(t *testing.T, name string) string {
	t.Helper()
	// go test runs in internal/analyzer.
	dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return dir
}

// relationSet renders relations as "pkg.Component -> pkg.Capability", with a
// leading * for pointer-only matches.
func relationSet(result *Result) []string {
	var out []string
	for _, rel := range result.Relations {
		comp := rel.Component.PkgName + "." + rel.Component.Name
		if rel.ViaPointer {
			comp = "*" + comp
		}
		out = append(out, comp+" -> "+rel.Capability.PkgName+"."+rel.Capability.Name)
	}
	sort.Strings(out)
	return out
}

func analyze(t *testing.T, fixture string, opts AnalyzeOptions) *Result {
	t.Helper()
	result, err := Analyze(context.Background(), testdataDir(t, fixture), opts, testLogger())
	require.NoError(t, err)
	return Filter(result, opts)
}

func TestAnalyze_Fixtures(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		opts    AnalyzeOptions
		want    []string
	}{
		{
			name:    "layered cave",
			fixture: "layered_cave",
			want: []string{
				"*echo.Echo -> bar.Barer",
				"bar.Utility -> bar.Barer",
			},
		},
		{
			name:    "layered cave restricted to bar",
			fixture: "layered_cave",
			opts:    AnalyzeOptions{Patterns: []string{"./bar"}},
			want:    []string{"bar.Utility -> bar.Barer"},
		},
		{
			name:    "composite capabilities",
			fixture: "composite",
			want: []string{
				"cave.Gate -> cave.Closer",
				"cave.Gate -> cave.Door",
				"cave.Gate -> cave.Opener",
				"cave.Hatch -> cave.Opener",
			},
		},
		{
			name:    "unexported hidden by default",
			fixture: "hidden",
			want:    []string{"hidden.Bat -> hidden.Sleeper"},
		},
		{
			name:    "unexported included",
			fixture: "hidden",
			opts:    AnalyzeOptions{IncludeUnexported: true},
			want: []string{
				"hidden.Bat -> hidden.Sleeper",
				"hidden.mole -> hidden.Sleeper",
				"hidden.mole -> hidden.digger",
			},
		},
		{
			name:    "stdlib capabilities excluded",
			fixture: "stdlib",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyze(t, tt.fixture, tt.opts)
			assert.Equal(t, tt.want, relationSet(result))
		})
	}
}

func TestAnalyze_StdlibIncluded(t *testing.T) {
	result := analyze(t, "stdlib", AnalyzeOptions{IncludeStdlib: true})
	got := relationSet(result)
	assert.Contains(t, got, "stdlib.Echo -> fmt.Stringer")
	assert.Contains(t, got, "stdlib.Fault -> builtin.error")
}

func TestAnalyze_PrunesOrphans(t *testing.T) {
	result := analyze(t, "layered_cave", AnalyzeOptions{})

	var comps []string
	for _, c := range result.Components {
		comps = append(comps, c.Name)
	}
	assert.ElementsMatch(t, []string{"Utility", "Echo"}, comps)

	require.Len(t, result.Capabilities, 1)
	barer := result.Capabilities[0]
	assert.Equal(t, "Barer", barer.Name)
	assert.Equal(t, "example.com/layered_cave/bar", barer.PkgPath)
	assert.Equal(t, []MethodSig{{Name: "DoBar", Signature: "DoBar()"}}, barer.Methods)
	assert.Equal(t, filepath.Join("bar", "bar.go"), barer.SourceFile)
}

func TestAnalyze_EmptyInterfaceSkipped(t *testing.T) {
	result, err := Analyze(context.Background(), testdataDir(t, "composite"), AnalyzeOptions{}, testLogger())
	require.NoError(t, err)

	for _, rel := range result.Relations {
		assert.NotEqual(t, "Marker", rel.Capability.Name)
	}
}

func TestAnalyze_SignatureMismatchNotMatched(t *testing.T) {
	result, err := Analyze(context.Background(), testdataDir(t, "layered_cave"), AnalyzeOptions{}, testLogger())
	require.NoError(t, err)

	for _, rel := range result.Relations {
		assert.NotEqual(t, "Liar", rel.Component.Name, "Liar.DoBar(int) error must not satisfy %s", rel.Capability.Name)
	}
}

func TestMatchesMethodSet_ComparesSignatures(t *testing.T) {
	pkg := types.NewPackage("example.com/cave", "cave")
	noArgs := types.NewSignatureType(nil, nil, nil, nil, nil, false)
	iface := types.NewInterfaceType([]*types.Func{types.NewFunc(token.NoPos, pkg, "DoBar", noArgs)}, nil).Complete()

	intParam := types.NewTuple(types.NewVar(token.NoPos, pkg, "n", types.Typ[types.Int]))
	errResult := types.NewTuple(types.NewVar(token.NoPos, pkg, "", types.Universe.Lookup("error").Type()))

	newType := func(name string, params, results *types.Tuple) *types.Named {
		named := types.NewNamed(types.NewTypeName(token.NoPos, pkg, name, nil), types.NewStruct(nil, nil), nil)
		recv := types.NewVar(token.NoPos, pkg, "", named)
		sig := types.NewSignatureType(recv, nil, nil, params, results, false)
		named.AddMethod(types.NewFunc(token.NoPos, pkg, "DoBar", sig))
		return named
	}

	good := newType("Utility", nil, nil)
	bad := newType("Liar", intParam, errResult)

	var cache typeutil.MethodSetCache
	assert.True(t, matchesMethodSet(cache.MethodSet(good), iface))
	assert.False(t, matchesMethodSet(cache.MethodSet(bad), iface))
}

func TestFilter_PackagePrefix(t *testing.T) {
	opts := AnalyzeOptions{Filter: "example.com/layered_cave/echo"}
	result := analyze(t, "layered_cave", opts)
	// The filter matches on either side of the relation.
	assert.Equal(t, []string{"*echo.Echo -> bar.Barer"}, relationSet(result))
}

func TestIsStdlib(t *testing.T) {
	assert.True(t, isStdlib("fmt"))
	assert.True(t, isStdlib("io/fs"))
	assert.True(t, isStdlib("builtin"))
	assert.False(t, isStdlib("example.com/layered_cave/bar"))
	assert.False(t, isStdlib("github.com/olehluchkiv/cavecheck"))
}

func TestIsUnexported(t *testing.T) {
	assert.True(t, isUnexported(""))
	assert.True(t, isUnexported("mole"))
	assert.False(t, isUnexported("error"))
	assert.False(t, isUnexported("Bat"))
}
