package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/usecase"
)

func newIngestCommand(deps Deps) *cobra.Command {
	var in usecase.UploadInput
	var referenceDate string

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Upload a file to the archive",
		Long:  `Stores the file, records the document and queues it for classification.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if referenceDate != "" {
				parsed, err := time.Parse("2006-01-02", referenceDate)
				if err != nil {
					return domain.WrapError(domain.ErrInvalidInput, "parse reference date", err)
				}
				in.ReferenceDate = &parsed
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			in.Filename = filepath.Base(args[0])
			in.Body = f

			return withServices(cmd, deps, func(s *Services) error {
				doc, err := s.Ingestor.Upload(cmd.Context(), in)
				if err != nil {
					return err
				}
				cmd.Printf("Document %d stored as %s\n", doc.ID, doc.StoragePath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Code, "code", "", "Document code")
	cmd.Flags().StringVar(&in.TypeCode, "type", "", "Document type code, kept over the classifier prediction")
	cmd.Flags().StringVar(&in.Description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&referenceDate, "date", "", "Reference date (YYYY-MM-DD)")
	return cmd
}

func newProcessCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "process [doc-id]",
		Short: "Classify a stored document now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			return withServices(cmd, deps, func(s *Services) error {
				if err := s.Processor.ProcessByID(cmd.Context(), id); err != nil {
					return err
				}
				cmd.Printf("Document %d classified\n", id)
				return nil
			})
		},
	}
}

func newResolveCommand(deps Deps) *cobra.Command {
	var assignments []string
	var save bool

	cmd := &cobra.Command{
		Use:   "resolve [doc-id]",
		Short: "Resolve the archive filename of a document",
		Long:  `Prints the filename built from the document type pattern. --set overrides attribute values for this resolution only; --save stores the result.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			overrides, err := parseAssignments(assignments)
			if err != nil {
				return err
			}
			return withServices(cmd, deps, func(s *Services) error {
				var filename string
				if save {
					filename, err = s.Filenames.ResolveFilename(cmd.Context(), id, overrides)
				} else {
					filename, err = s.Filenames.Preview(cmd.Context(), id, overrides)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filename)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "Attribute override as code=value (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the resolved filename")
	return cmd
}

func newAttrsCommand(deps Deps) *cobra.Command {
	var assignments []string

	cmd := &cobra.Command{
		Use:   "attrs [doc-id]",
		Short: "Set dynamic attributes and rename the document",
		Long:  `Validates and stores attribute values, then resolves and saves the filename. An empty value clears the attribute.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(assignments)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return domain.WrapError(domain.ErrInvalidInput, "attrs", fmt.Errorf("at least one --set is required"))
			}
			return withServices(cmd, deps, func(s *Services) error {
				filename, err := s.Attributes.Submit(cmd.Context(), id, values)
				if err != nil {
					return err
				}
				for _, code := range sortedKeys(values) {
					cmd.Printf("  %s = %q\n", code, values[code])
				}
				fmt.Fprintln(cmd.OutOrStdout(), filename)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "Attribute value as code=value (repeatable)")
	return cmd
}

func newEnqueueCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [doc-id...]",
		Short: "Request background classification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, raw := range args {
				id, err := parseDocumentID(raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return withServices(cmd, deps, func(s *Services) error {
				for _, id := range ids {
					if err := s.Publisher.PublishClassifyRequested(cmd.Context(), id); err != nil {
						return fmt.Errorf("enqueue document %d: %w", id, err)
					}
				}
				cmd.Printf("Queued %d document(s)\n", len(ids))
				return nil
			})
		},
	}
}
