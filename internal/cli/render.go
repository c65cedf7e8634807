package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	pgio "github.com/matzehuels/peergraph/pkg/io"
	"github.com/matzehuels/peergraph/pkg/pipeline"
	"github.com/matzehuels/peergraph/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output       string // output file; format inferred from its extension
	format       string // svg or dot, overrides the extension
	rankdir      string // TB or LR
	hideVersions bool
	allowMissing bool
	noCache      bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{rankdir: render.RankTopBottom}

	cmd := &cobra.Command{
		Use:   "render <input>",
		Short: "Build a graph and render it as SVG or DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format == "" {
				opts.format = formatFromOutput(opts.output)
			}
			ro := pipeline.RenderOptions{Format: opts.format, Rankdir: opts.rankdir, HideVersions: opts.hideVersions}
			if err := ro.Validate(); err != nil {
				return err
			}
			return c.runRender(cmd, args[0], opts, ro)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), dot")
	cmd.Flags().StringVar(&opts.rankdir, "rankdir", opts.rankdir, "layout direction: TB, LR")
	cmd.Flags().BoolVar(&opts.hideVersions, "hide-versions", false, "label nodes with names only")
	cmd.Flags().BoolVar(&opts.allowMissing, "no-fail-on-missing-peers", false, "report unmet peer dependencies instead of failing")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, path string, opts renderOpts, ro pipeline.RenderOptions) error {
	ctx := cmd.Context()

	in, err := pgio.LoadInput(path)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, opts.noCache, nil)
	if err != nil {
		return err
	}
	defer runner.Close()

	res, err := runner.Build(ctx, in, pipeline.Options{
		AllowMissingPeers: opts.allowMissing || !c.Config.Build.FailOnMissingPeers,
	})
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		printDiagnostic(d)
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", ro.Format))
	spinner.Start()
	data, cached, err := runner.Render(ctx, res, ro)
	spinner.Stop()
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err := c.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess("Rendered %s", res.Root)
	printStats(len(res.Graph.Nodes), len(res.Graph.Links), res.Stats.VirtualNodes, cached)
	printFile(opts.output)
	return nil
}

// formatFromOutput infers the render format from an output path.
func formatFromOutput(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return pipeline.FormatDOT
	default:
		return pipeline.FormatSVG
	}
}
