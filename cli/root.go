package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dealflow-ingest/assist"
	"dealflow-ingest/config"
	"dealflow-ingest/schema"
	"dealflow-ingest/services"
	"dealflow-ingest/storage"
	"dealflow-ingest/utils"
)

// app is the state shared by every command, built in PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *utils.Logger
	out    io.Writer

	verbose   bool
	storeFlag string
	sqlite    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:           "dealflow",
		Short:         "Import deal and listing spreadsheets into the dealflow database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().StringVar(&a.storeFlag, "store", "", "Store driver: postgres or sqlite (overrides STORE_DRIVER)")
	root.PersistentFlags().StringVar(&a.sqlite, "sqlite-path", "", "SQLite database file (overrides SQLITE_PATH)")

	root.AddCommand(
		newIngestCmd(a),
		newMappingsCmd(a),
		newExportCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) init(cmd *cobra.Command) error {
	a.cfg = config.Load()
	if a.storeFlag != "" {
		a.cfg.StoreDriver = strings.ToLower(a.storeFlag)
	}
	if a.sqlite != "" {
		a.cfg.SQLitePath = a.sqlite
	}
	if a.verbose {
		a.cfg.LogLevel = "debug"
	}
	if w := cmd.OutOrStdout(); w != nil {
		a.out = w
	}

	logger, err := utils.NewLogger(utils.LoggerOptions{Level: a.cfg.LogLevel, Format: a.cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) openStore(ctx context.Context) (*storage.SQLStore, error) {
	store, err := storage.Open(ctx, a.cfg, a.logger)
	if err != nil {
		a.logger.Error("[store] Failed to open %s store: %v", a.cfg.StoreDriver, err)
		if a.cfg.StoreDriver != "sqlite" {
			a.logger.Error("[store] Make sure PostgreSQL is running: docker compose up -d")
		}
		return nil, err
	}
	return store, nil
}

// pipelineOptions bundles what a command needs to build a Pipeline.
type pipelineOptions struct {
	profilePath string
	noAssist    bool
}

func (a *app) newPipeline(ctx context.Context, def *schema.Definition, po pipelineOptions) (*services.Pipeline, error) {
	ro := services.ResolverOptions{
		MinConfidence: a.cfg.AssistMinConfidence,
		Timeout:       a.cfg.AssistTimeout,
	}

	if po.profilePath != "" {
		profile, err := config.LoadMappingProfile(po.profilePath)
		if err != nil {
			return nil, err
		}
		if profile.Schema != "" && !strings.EqualFold(profile.Schema, string(def.ID)) {
			a.logger.Warn("[cli] Mapping profile %s targets %s, not %s", po.profilePath, profile.Schema, def.ID)
		}
		ro.Profile = profile
	}

	if !po.noAssist && a.cfg.AssistEnabled() {
		g, err := assist.NewGeminiResolver(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
		if err != nil {
			a.logger.Warn("[cli] Assisted mapping disabled: %v", err)
		} else {
			ro.Assisted = g
			a.logger.Debug("[cli] Assisted mapping via %s", g.Name())
		}
	}

	return services.NewPipeline(def, services.PipelineOptions{
		Resolver:   ro,
		SampleRows: a.cfg.AssistSampleRows,
	}, a.logger), nil
}

func lookupSchema(id string) (*schema.Definition, error) {
	def, err := schema.Lookup(id)
	if err != nil {
		return nil, fmt.Errorf("--schema must be %q or %q: %w", schema.Deals, schema.Listings, err)
	}
	return def, nil
}
