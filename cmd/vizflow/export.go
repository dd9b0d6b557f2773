package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rpattn/vizflow/internal/db"
	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/export"
	"github.com/rpattn/vizflow/internal/repository"

	"github.com/spf13/cobra"
)

type exportFlags struct {
	format   string
	output   string
	filename string
	pretty   bool
	filters  map[string]*string
}

func newExportCmd() *cobra.Command {
	flags := &exportFlags{filters: map[string]*string{}}
	cmd := &cobra.Command{
		Use:       "export <records|errors|dashboard>",
		Short:     "Write a filtered export to disk",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"records", "errors", "dashboard"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVarP(&flags.format, "format", "f", "csv", "Output format: csv, excel or json")
	cmd.Flags().StringVarP(&flags.output, "output", "o", ".", "Directory to write the export into")
	cmd.Flags().StringVar(&flags.filename, "filename", "", "Base name of the export file")
	cmd.Flags().BoolVar(&flags.pretty, "pretty", false, "Indent JSON exports")
	for _, name := range []string{"search", "sourceFormat", "processedBy", "uploadId", "sourceFile", "errorType", "status", "startDate", "endDate"} {
		flags.filters[name] = cmd.Flags().String(name, "", "Filter by "+name)
	}
	return cmd
}

// query turns the filter flags into the same parameters the HTTP API parses.
func (f *exportFlags) query() url.Values {
	values := url.Values{}
	for name, value := range f.filters {
		if *value != "" {
			values.Set(name, *value)
		}
	}
	return values
}

func runExport(cmd *cobra.Command, target string, flags *exportFlags) error {
	format, ok := export.ParseFormat(flags.format)
	if !ok {
		return fmt.Errorf("unsupported format %q", flags.format)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.NewConnection(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	service := export.NewService(
		repository.NewRecordRepository(conn.Pool),
		repository.NewErrorLogRepository(conn),
		export.WithMaxRows(cfg.Export.MaxRows),
	)
	req := export.Request{Format: format, Filename: flags.filename, Pretty: flags.pretty}

	var file export.File
	switch target {
	case "records":
		filter, err := domain.ParseRecordFilter(flags.query())
		if err != nil {
			return err
		}
		file, err = service.ExportRecords(cmd.Context(), filter, req)
		if err != nil {
			return err
		}
	case "errors":
		filter, err := domain.ParseErrorLogFilter(flags.query())
		if err != nil {
			return err
		}
		file, err = service.ExportErrors(cmd.Context(), filter, req)
		if err != nil {
			return err
		}
	case "dashboard":
		file, err = service.ExportDashboard(cmd.Context(), flags.filename)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export %q (want records, errors or dashboard)", target)
	}

	path := filepath.Join(flags.output, file.Filename)
	if err := os.WriteFile(path, file.Bytes, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(file.Bytes))
	return nil
}
