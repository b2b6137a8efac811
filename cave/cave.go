// Package cave wires the fixture components into a test layer.
//
// The layer provides bar.Utility as the default bar.Barer. Tests running
// under the layer look the component up by capability and exercise it.
package cave

import (
	"context"
	"fmt"

	"github.com/olehluchkiv/cavecheck/cave/bar"
	"github.com/olehluchkiv/cavecheck/internal/layer"
	"github.com/olehluchkiv/cavecheck/internal/registry"
)

// LayerName is the name of the layer returned by NewLayer.
const LayerName = "BarLayer"

// NewLayer returns the layer that provides the cave components in reg.
func NewLayer(reg *registry.Registry) *layer.Layer {
	return &layer.Layer{
		Name: LayerName,
		SetUp: func(context.Context) error {
			return registry.Provide[bar.Barer](reg, registry.DefaultName, bar.Utility{})
		},
		TearDown: func(context.Context) error {
			registry.Remove[bar.Barer](reg, registry.DefaultName)
			return nil
		},
	}
}

// Exercise calls DoBar on every Barer in reg and returns how many ran.
func Exercise(ctx context.Context, reg *registry.Registry) (int, error) {
	regs := registry.All[bar.Barer](reg)
	if len(regs) == 0 {
		return 0, fmt.Errorf("exercise: %w: no bar.Barer provided", registry.ErrNotFound)
	}
	for i, r := range regs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		r.Component.DoBar()
	}
	return len(regs), nil
}
