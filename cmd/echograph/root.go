package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"echograph/internal/backend"
	"echograph/internal/config"
	"echograph/internal/logging"
)

var (
	okText    = color.New(color.FgGreen, color.Bold).SprintFunc()
	labelText = color.New(color.FgCyan).SprintFunc()
)

// runtime is what every subcommand opens before doing work.
type runtime struct {
	cfg     config.Config
	log     zerolog.Logger
	backend *backend.Backend
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "echograph",
		Short:         "Match cloud guidelines against regulations",
		Long:          "echograph segments guideline and regulation documents, embeds them and proposes\nguideline-to-regulation matches for review.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	var noColor bool
	root.PersistentFlags().String("config", os.Getenv("ECHOGRAPH_CONFIG"), "YAML config file; environment variables override it")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		if noColor {
			color.NoColor = true
		}
	}
	root.AddCommand(newMigrateCmd(), newIngestCmd(), newMatchCmd())
	return root
}

// openRuntime loads configuration, opens the backend and applies migrations,
// so every command works against an initialized schema.
func openRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	b, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := b.Migrate(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, backend: b}, nil
}

func (r *runtime) Close() {
	r.backend.Close()
}
