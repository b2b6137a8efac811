// Package layer sets up and tears down shared test fixtures in dependency order.
package layer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Layer is a named fixture. Bases are set up before the layer and torn down
// after it.
type Layer struct {
	Name     string
	Bases    []*Layer
	SetUp    func(ctx context.Context) error
	TearDown func(ctx context.Context) error
}

// Resolve returns the setup order for layers: every base before the layers
// that build on it, each layer once, otherwise in declaration order.
func Resolve(layers ...*Layer) []*Layer {
	var order []*Layer
	seen := make(map[*Layer]bool)

	var visit func(l *Layer)
	visit = func(l *Layer) {
		if l == nil || seen[l] {
			return
		}
		seen[l] = true
		for _, base := range l.Bases {
			visit(base)
		}
		order = append(order, l)
	}

	for _, l := range layers {
		visit(l)
	}
	return order
}

// Stack tracks which layers are currently set up.
type Stack struct {
	order  []*Layer
	active []*Layer
	logger *slog.Logger
}

// NewStack resolves layers into a stack. A nil logger discards output.
func NewStack(logger *slog.Logger, layers ...*Layer) *Stack {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stack{
		order:  Resolve(layers...),
		logger: logger,
	}
}

// Layers returns the resolved setup order.
func (s *Stack) Layers() []*Layer {
	return append([]*Layer(nil), s.order...)
}

// SetUp sets up every layer in order. If one fails, the layers already set
// up are torn down again and the setup error is returned.
func (s *Stack) SetUp(ctx context.Context) error {
	for _, l := range s.order {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, s.TearDown(context.WithoutCancel(ctx)))
		}
		s.logger.Debug("setting up layer", "layer", l.Name)
		if l.SetUp != nil {
			if err := l.SetUp(ctx); err != nil {
				err = fmt.Errorf("set up layer %s: %w", l.Name, err)
				return errors.Join(err, s.TearDown(context.WithoutCancel(ctx)))
			}
		}
		s.active = append(s.active, l)
	}
	s.logger.Info("layers set up", "count", len(s.active))
	return nil
}

// TearDown tears down active layers in reverse order. Every layer is torn
// down even if an earlier one fails; the errors are joined. Unwinding after
// cancellation should pass context.WithoutCancel so teardowns still run.
func (s *Stack) TearDown(ctx context.Context) error {
	var errs []error
	for i := len(s.active) - 1; i >= 0; i-- {
		l := s.active[i]
		s.logger.Debug("tearing down layer", "layer", l.Name)
		if l.TearDown != nil {
			if err := l.TearDown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tear down layer %s: %w", l.Name, err))
			}
		}
	}
	s.active = nil
	return errors.Join(errs...)
}

// Runner is satisfied by *testing.M.
type Runner interface {
	Run() int
}

// Run sets up layers, runs m and tears the layers down. It returns the exit
// code for os.Exit.
func Run(ctx context.Context, m Runner, logger *slog.Logger, layers ...*Layer) int {
	stack := NewStack(logger, layers...)
	if err := stack.SetUp(ctx); err != nil {
		stack.logger.Error("layer setup failed", "error", err)
		return 1
	}

	code := m.Run()

	if err := stack.TearDown(context.WithoutCancel(ctx)); err != nil {
		stack.logger.Error("layer teardown failed", "error", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}
