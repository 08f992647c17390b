// Command bdispatchd serves the example item API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/bserver"
	"github.com/advdv/bdispatch/internal/example"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Env extends the server environment with the API tokens, "token:subject" pairs separated by commas.
type Env struct {
	bserver.BaseEnvironment
	APITokens map[string]string `env:"BD_API_TOKENS,required"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:          "bdispatchd",
		Short:        "Serve the example item API",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			existing := make([]string, 0, len(envFiles))
			for _, f := range envFiles {
				if _, err := os.Stat(f); err == nil {
					existing = append(existing, f)
				}
			}

			if len(existing) == 0 {
				return nil
			}

			return errors.Wrap(godotenv.Load(existing...), "failed to load env files")
		},
	}

	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"},
		"files to read environment variables from, missing files are skipped")

	root.AddCommand(newServeCmd(), newRoutesCmd())

	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := bserver.NewApp[Env](func(b *bdispatch.Builder, env Env) {
				example.Routes(b, env.APITokens)
			})
			if err := app.Err(); err != nil {
				return err
			}

			return app.Start(cmd.Context())
		},
	}
}

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the registered routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := bdispatch.NewBuilder()
			example.Routes(b, nil)

			app, err := b.Build()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ri := range app.Routes() {
				fmt.Fprintf(tw, "%s\t%s\n", ri, ri.Name)
			}

			return tw.Flush()
		},
	}
}
