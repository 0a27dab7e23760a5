package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dealflow-ingest/config"
	"dealflow-ingest/models"
	"dealflow-ingest/services"
)

type mappingsOptions struct {
	schema   string
	file     string
	pipeline pipelineOptions
	save     string
	jsonOut  bool
}

func newMappingsCmd(a *app) *cobra.Command {
	var opts mappingsOptions

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Preview how a CSV file's columns map onto a schema",
		Long: `Resolve the column mapping for a file without importing it.
With --save the mapping is written as a YAML profile that can be edited
and passed back to ingest with --mapping.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMappings(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.schema, "schema", "s", "", "Target schema: deals or business_listings (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV file to inspect (required)")
	cmd.Flags().StringVar(&opts.pipeline.profilePath, "mapping", "", "Existing YAML mapping profile to apply")
	cmd.Flags().BoolVar(&opts.pipeline.noAssist, "no-assist", false, "Skip the Gemini resolver")
	cmd.Flags().StringVar(&opts.save, "save", "", "Write the resolved mapping to this YAML profile")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the mapping as JSON")

	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) runMappings(cmd *cobra.Command, opts mappingsOptions) error {
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
		return err
	}

	p, err := a.newPipeline(ctx, def, opts.pipeline)
	if err != nil {
		return err
	}
	mapping := p.ResolveMapping(ctx, table)

	if opts.jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mapping); err != nil {
			return err
		}
	} else {
		printMapping(a, mapping)
	}

	if opts.save != "" {
		if err := profileFrom(mapping).Save(opts.save); err != nil {
			return err
		}
		a.logger.Info("[cli] Mapping profile saved to %s", opts.save)
	}
	return nil
}

func printMapping(a *app, m *models.MappingResult) {
	fmt.Fprintf(a.out, "Mapping for %s\n%s\n", m.Schema, strings.Repeat("─", 60))
	for _, cm := range m.Mappings {
		kind := cm.TransformationType
		if kind == "" {
			kind = "text"
		}
		fmt.Fprintf(a.out, "  %-26s → %-22s %3d%%  %-10s %s\n", cm.SourceColumn, cm.TargetField, cm.Confidence, kind, cm.Origin)
	}
	if len(m.UnmappedColumns) > 0 {
		fmt.Fprintf(a.out, "  unmapped: %s\n", strings.Join(m.UnmappedColumns, ", "))
	}
	for _, s := range m.Suggestions {
		fmt.Fprintf(a.out, "  suggestion: %s\n", s)
	}
	for _, w := range m.Warnings {
		fmt.Fprintf(a.out, "  warning: %s\n", w)
	}
}

// profileFrom turns a resolved mapping into an editable override profile.
func profileFrom(m *models.MappingResult) *config.MappingProfile {
	p := &config.MappingProfile{Schema: string(m.Schema), Columns: make(map[string]string, len(m.Mappings))}
	for _, cm := range m.Mappings {
		p.Columns[cm.SourceColumn] = string(cm.TargetField)
	}
	return p
}
