package cli

import (
	"github.com/spf13/cobra"

	"dealflow-ingest/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var schemaID, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump a stored table as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			def, err := lookupSchema(schemaID)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.FetchAll(ctx, def)
			if err != nil {
				a.logger.Error("[cli] Fetch %s failed: %s", def.Table, storage.FriendlyMessage(err))
				return err
			}

			if out == "" || out == "-" {
				w := storage.NewCSVStreamWriter(a.out)
				if err := w.WriteRecords(def, records); err != nil {
					return err
				}
				return w.Close()
			}
			if err := writeCSV(out, func(w *storage.CSVWriter) error {
				return w.WriteRecords(def, records)
			}); err != nil {
				return err
			}
			a.logger.Info("[cli] Exported %d %s records to %s", len(records), def.Table, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaID, "schema", "s", "", "Table to export: deals or business_listings (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the deals and business_listings tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				a.logger.Error("[cli] Migration failed: %s", storage.FriendlyMessage(err))
				return err
			}
			a.logger.Info("[cli] Tables ready on %s", a.cfg.StoreDriver)
			return nil
		},
	}
}
