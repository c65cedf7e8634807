package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	pgio "github.com/matzehuels/peergraph/pkg/io"
	"github.com/matzehuels/peergraph/pkg/pipeline"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	output          string // output file, or directory when several inputs are given
	allowMissing    bool   // downgrade unmet peers to diagnostics
	withDiagnostics bool   // include diagnostics in the JSON output
	noCache         bool
	refresh         bool
	jobs            int
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build <input>...",
		Short: "Build install graphs from input documents",
		Long: `Build reads one or more input documents (JSON or YAML with "manifests" and
"resolutions") and writes the install graph of each as JSON.

With a single input the graph goes to stdout or to --output. With several inputs
--output names a directory and each graph is written as <input>.graph.json.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single input) or directory (several inputs)")
	cmd.Flags().BoolVar(&opts.allowMissing, "no-fail-on-missing-peers", false, "report unmet peer dependencies instead of failing")
	cmd.Flags().BoolVar(&opts.withDiagnostics, "with-diagnostics", false, "include diagnostics in the output")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "rebuild even if a cached graph exists")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "parallel builds (default from config)")

	return cmd
}

func (c *CLI) runBuild(cmd *cobra.Command, paths []string, opts buildOpts) error {
	ctx := cmd.Context()

	jobs := make([]pipeline.Job, 0, len(paths))
	for _, p := range paths {
		in, err := pgio.LoadInput(p)
		if err != nil {
			return err
		}
		jobs = append(jobs, pipeline.Job{Name: p, Input: in})
	}

	runner, err := c.newRunner(ctx, opts.noCache, nil)
	if err != nil {
		return err
	}
	defer runner.Close()

	limit := opts.jobs
	if limit <= 0 {
		limit = c.Config.Build.Concurrency
	}
	prog := newProgress(c.Logger)
	results, err := runner.BuildAll(ctx, jobs, pipeline.Options{
		AllowMissingPeers: opts.allowMissing || !c.Config.Build.FailOnMissingPeers,
		Refresh:           opts.refresh,
	}, limit)
	if err != nil {
		return err
	}

	var failed int
	for _, jr := range results {
		if jr.Err != nil {
			failed++
			printError("%s: %v", jr.Name, jr.Err)
			continue
		}
		if err := c.writeBuild(jr, opts, len(results) > 1); err != nil {
			return err
		}
	}
	prog.done(fmt.Sprintf("Built %d of %d graphs", len(results)-failed, len(results)))

	if failed > 0 {
		if len(results) == 1 {
			return results[0].Err
		}
		return fmt.Errorf("%d of %d builds failed", failed, len(results))
	}
	if opts.output != "" && len(results) == 1 {
		printNextStep("Render it", fmt.Sprintf("%s render %s -o graph.svg", appName, paths[0]))
	}
	return nil
}

func (c *CLI) writeBuild(jr pipeline.JobResult, opts buildOpts, many bool) error {
	res := jr.Result

	var path string
	switch {
	case many:
		dir := opts.output
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		path = filepath.Join(dir, graphFileName(jr.Name))
	case opts.output != "":
		path = opts.output
	}

	w := c.stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	var err error
	if opts.withDiagnostics {
		err = pgio.WriteReport(w, res.Graph, res.Diagnostics)
	} else {
		err = pgio.WriteGraph(w, res.Graph)
	}
	if err != nil {
		return err
	}

	printSuccess("%s", res.Root)
	printStats(len(res.Graph.Nodes), len(res.Graph.Links), res.Stats.VirtualNodes, res.Cached)
	for _, d := range res.Diagnostics {
		printDiagnostic(d)
	}
	if path != "" {
		printFile(path)
	}
	return nil
}

// graphFileName derives the output name for an input path:
// "deps/app.yaml" becomes "app.graph.json".
func graphFileName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".graph.json"
}
