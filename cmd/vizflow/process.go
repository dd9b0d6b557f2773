package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/processing"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var fileType, options string
	var pretty bool
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run a file through its processor and print the envelope as JSON",
		Long:  "Processes a local file without touching the database. The envelope is written to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)

			opts := processing.Options{UploadID: uuid.NewString()}
			if options != "" {
				extra := record.NewMap()
				if err := extra.UnmarshalJSON([]byte(options)); err != nil {
					return fmt.Errorf("--options must be a JSON object: %w", err)
				}
				opts.Extra = extra
			}

			dispatcher := processing.NewDispatcher(processing.NewProcessors(cfg.Settings()), processing.WithLogger(logger))
			env, err := dispatcher.ProcessFile(cmd.Context(), domain.Upload{
				ID:            opts.UploadID,
				FileName:      name,
				MimeType:      processing.MIMEForFile(name),
				Size:          info.Size(),
				Path:          path,
				SpecifiedType: fileType,
			}, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(env); err != nil {
				return err
			}
			if !env.Success {
				return fmt.Errorf("processing %s failed", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&fileType, "type", "t", "", "Force a format (csv, xml, excel, pdf, image)")
	cmd.Flags().StringVar(&options, "options", "", "Processor options as a JSON object")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the JSON output")
	return cmd
}
