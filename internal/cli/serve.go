package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/peergraph/internal/server"
	"github.com/matzehuels/peergraph/pkg/cache"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the build API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}

			// API entries live in their own namespace so a shared cache can
			// also hold CLI results.
			runner, err := c.newRunner(cmd.Context(), false, cache.NewScopedKeyer(nil, "api:"))
			if err != nil {
				return err
			}
			defer runner.Close()

			printInfo("%s", StyleTitle.Render(appName+" API"))
			printKeyValue("address", addr)
			printKeyValue("cache", c.Config.Cache.Backend)

			srv := server.New(runner, c.Logger, server.Options{
				MaxBodySize:       c.Config.Server.MaxBodySize,
				AllowMissingPeers: !c.Config.Build.FailOnMissingPeers,
			})
			return srv.Run(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
