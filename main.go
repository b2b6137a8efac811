package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/olehluchkiv/cavecheck/cave"
	"github.com/olehluchkiv/cavecheck/internal/analyzer"
	"github.com/olehluchkiv/cavecheck/internal/diagram"
	"github.com/olehluchkiv/cavecheck/internal/layer"
	"github.com/olehluchkiv/cavecheck/internal/logging"
	"github.com/olehluchkiv/cavecheck/internal/manifest"
	"github.com/olehluchkiv/cavecheck/internal/registry"
	"github.com/olehluchkiv/cavecheck/internal/resolver"
)

type app struct {
	logger   *slog.Logger
	cleanup  func()
	logFile  string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, newApp(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func newApp() *app {
	return &app{cleanup: func() {}}
}

// close releases the log file. PersistentPostRun is skipped when a command
// fails, so this runs after Execute returns instead.
func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

// execute runs the CLI with args and always releases the app's resources.
func execute(ctx context.Context, a *app, args []string, out, errOut io.Writer) error {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "cavecheck",
		Short:        "Verify and exercise layered test components",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "also append logs to this file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return err
		}
		logger, cleanup, err := logging.Setup(a.logFile, level)
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		a.logger = logger
		a.cleanup = cleanup
		return nil
	}

	root.AddCommand(newCheckCmd(a), newListCmd(a), newGraphCmd(a), newExerciseCmd(a))
	return root
}

func newCheckCmd(a *app) *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Verify that each layer's packages provide the capabilities in the manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), a.logger, firstArg(args), manifestPath)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest path (default <module root>/"+manifest.DefaultPath+")")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, logger *slog.Logger, dir, manifestPath string) error {
	root, err := resolver.Resolve(dir, logger)
	if err != nil {
		return err
	}
	if manifestPath == "" {
		manifestPath = filepath.Join(root, manifest.DefaultPath)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	total, failed := 0, 0
	for _, l := range m.Layers {
		logger := logger.With("layer", l.Name)
		result, err := analyzer.Analyze(ctx, root, analyzer.AnalyzeOptions{Patterns: l.Packages}, logger)
		if err != nil {
			return fmt.Errorf("layer %s: %w", l.Name, err)
		}

		for _, p := range l.Provides {
			total++
			if violations := analyzer.Verify(result, []manifest.Provision{p}); len(violations) > 0 {
				failed++
				logger.Warn("provision not met", "provision", p.String(), "kind", violations[0].Kind)
				fmt.Fprintf(tw, "FAIL\t%s\t%s\n", l.Name, violations[0].Error())
				continue
			}
			fmt.Fprintf(tw, "ok\t%s\t%s\n", l.Name, p)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d provisions not met", failed, total)
	}
	return nil
}

func newListCmd(a *app) *cobra.Command {
	var opts analyzer.AnalyzeOptions

	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List capabilities and the components implementing them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), a.logger, firstArg(args), opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.Patterns, "packages", "p", nil, "package patterns to load (default ./...)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "package path prefix filter")
	cmd.Flags().BoolVar(&opts.IncludeStdlib, "include-stdlib", false, "include standard library capabilities")
	cmd.Flags().BoolVar(&opts.IncludeUnexported, "include-unexported", false, "include unexported types and capabilities")
	return cmd
}

func runList(ctx context.Context, out io.Writer, logger *slog.Logger, dir string, opts analyzer.AnalyzeOptions) error {
	root, err := resolver.Resolve(dir, logger)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(ctx, root, opts, logger)
	if err != nil {
		return err
	}
	result = analyzer.Filter(result, opts)

	if len(result.Relations) == 0 {
		_, err := fmt.Fprintln(out, "No capabilities with implementers found.")
		return err
	}

	rows := make([][2]string, 0, len(result.Relations))
	for _, rel := range result.Relations {
		impl := rel.Component.PkgName + "." + rel.Component.Name
		if rel.ViaPointer {
			impl = "*" + impl
		}
		rows = append(rows, [2]string{rel.Capability.PkgName + "." + rel.Capability.Name, impl})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})

	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CAPABILITY\tIMPLEMENTER")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func newGraphCmd(a *app) *cobra.Command {
	var (
		opts   analyzer.AnalyzeOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Render capabilities and implementers as a Mermaid class diagram",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolver.Resolve(firstArg(args), a.logger)
			if err != nil {
				return err
			}
			result, err := analyzer.Analyze(cmd.Context(), root, opts, a.logger)
			if err != nil {
				return err
			}
			result = analyzer.Filter(result, opts)

			diagramOpts := diagram.DefaultOptions()
			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), diagram.Mermaid(result, diagramOpts))
				return err
			}
			diagramOpts.IncludeInit = true
			if err := os.WriteFile(output, []byte(diagram.Mermaid(result, diagramOpts)), 0o644); err != nil {
				return fmt.Errorf("write diagram: %w", err)
			}
			a.logger.Info("diagram written", "path", output)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&opts.Patterns, "packages", "p", nil, "package patterns to load (default ./...)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "package path prefix filter")
	cmd.Flags().BoolVar(&opts.IncludeStdlib, "include-stdlib", false, "include standard library capabilities")
	cmd.Flags().BoolVar(&opts.IncludeUnexported, "include-unexported", false, "include unexported types and capabilities")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write a standalone .mmd file instead of printing")
	return cmd
}

func newExerciseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exercise",
		Short: "Set up the cave layer and call every registered Barer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExercise(cmd.Context(), a.logger)
		},
	}
}

func runExercise(ctx context.Context, logger *slog.Logger) (err error) {
	reg := registry.New()
	stack := layer.NewStack(logger, cave.NewLayer(reg))
	if err := stack.SetUp(ctx); err != nil {
		return err
	}
	defer func() {
		if tdErr := stack.TearDown(context.WithoutCancel(ctx)); tdErr != nil && err == nil {
			err = tdErr
		}
	}()

	n, err := cave.Exercise(ctx, reg)
	if err != nil {
		return err
	}
	logger.Info("components exercised", "count", n)
	return nil
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
