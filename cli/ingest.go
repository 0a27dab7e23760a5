package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dealflow-ingest/services"
	"dealflow-ingest/storage"
)

type ingestOptions struct {
	schema           string
	file             string
	pipeline         pipelineOptions
	dryRun           bool
	ignoreDuplicates bool
	exportPath       string
	rawExportPath    string
	insights         bool
	jsonOut          bool
}

func newIngestCmd(a *app) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Map, normalize and upsert a CSV file into deals or business_listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ignore-duplicates") {
				opts.ignoreDuplicates = a.cfg.IgnoreDuplicates
			}
			return a.runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.schema, "schema", "s", "", "Target schema: deals or business_listings (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV file to import (required)")
	cmd.Flags().StringVar(&opts.pipeline.profilePath, "mapping", "", "YAML mapping profile whose columns override every other mapping")
	cmd.Flags().BoolVar(&opts.pipeline.noAssist, "no-assist", false, "Skip the Gemini resolver and use the synonym dictionary")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run the pipeline without writing to the store")
	cmd.Flags().BoolVar(&opts.ignoreDuplicates, "ignore-duplicates", false, "Keep existing rows on conflict instead of updating them (overrides IGNORE_DUPLICATES)")
	cmd.Flags().StringVar(&opts.exportPath, "export", "", "Also write the accepted records to this CSV file")
	cmd.Flags().StringVar(&opts.rawExportPath, "export-raw", "", "Also write the rows exactly as parsed to this CSV file")
	cmd.Flags().BoolVar(&opts.insights, "insights", false, "Print an insights report for the accepted records")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the upload summary as JSON")

	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) runIngest(cmd *cobra.Command, opts ingestOptions) error {
	ctx := cmd.Context()
	def, err := lookupSchema(opts.schema)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.file, err)
	}
	defer f.Close()

	table, err := services.Parse(f)
	if err != nil {
		a.logger.Error("[parser] %s: %v", opts.file, err)
		return err
	}
	a.logger.Info("[cli] Parsed %d rows from %s", table.Len(), opts.file)

	if opts.rawExportPath != "" {
		if err := writeCSV(opts.rawExportPath, func(w *storage.CSVWriter) error {
			return w.WriteTable(table.Records())
		}); err != nil {
			return err
		}
		a.logger.Info("[cli] Raw rows saved to %s", opts.rawExportPath)
	}

	p, err := a.newPipeline(ctx, def, opts.pipeline)
	if err != nil {
		return err
	}

	var store storage.Store
	if !opts.dryRun {
		s, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	uploader := services.NewUploader(p, store, nil, services.UploadOptions{
		BatchSize:        a.cfg.UpsertBatchSize,
		IgnoreDuplicates: opts.ignoreDuplicates,
		DryRun:           opts.dryRun,
	}, a.logger)

	summary, err := uploader.UploadTable(ctx, table)
	if err != nil {
		return err
	}

	insights := services.NewInsightService(a.logger)
	if opts.jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		insights.PrintSummary(a.out, summary)
	}

	if opts.exportPath != "" {
		if err := writeCSV(opts.exportPath, func(w *storage.CSVWriter) error {
			return w.WriteRecords(def, summary.Records)
		}); err != nil {
			return err
		}
		a.logger.Info("[cli] %d accepted records saved to %s", len(summary.Records), opts.exportPath)
	}

	if opts.insights {
		insights.Print(a.out, def, insights.Generate(def, summary.Records))
	}

	if summary.Successful == 0 && summary.Accepted > 0 && !summary.DryRun && summary.Skipped < summary.Accepted {
		return fmt.Errorf("upload to %s failed", def.Table)
	}
	return nil
}

func writeCSV(path string, write func(*storage.CSVWriter) error) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
