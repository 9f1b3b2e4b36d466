package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/storage"
	"github.com/joinhub/console/internal/wizard"
	"github.com/spf13/cobra"
)

type createResult struct {
	ProjectID        string                    `json:"projectId" yaml:"projectId"`
	ProjectName      string                    `json:"projectName" yaml:"projectName"`
	Files            []string                  `json:"files" yaml:"files"`
	Rejected         []string                  `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	CandidateColumns models.CandidateColumnMap `json:"candidateColumns" yaml:"candidateColumns"`
}

func newCreateCmd(opts *options) *cobra.Command {
	var (
		name   string
		detect bool
	)

	cmd := &cobra.Command{
		Use:   "create FILE FILE...",
		Short: "Create a join project from local files",
		Long: "Walks the project wizard: adds the files, detects candidate join columns, " +
			"names the project and submits it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			w := wizard.NewController(client, wizard.WithLogger(opts.log().Named("wizard")))
			res, err := runWizard(cmd.Context(), w, args, name, detect, opts.printer(cmd))
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Project:\t%s\n", res.ProjectID)
				fmt.Fprintf(tw, "Name:\t%s\n", res.ProjectName)
				fmt.Fprintf(tw, "Files:\t%s\n", strings.Join(res.Files, ", "))
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (required)")
	cmd.Flags().BoolVar(&detect, "detect", true, "Detect candidate join columns before submitting")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// runWizard drives w through all four steps. Unsupported files are reported
// and skipped, as the wizard does for uploads.
func runWizard(ctx context.Context, w *wizard.Controller, paths []string, name string, detect bool, p *printer) (*createResult, error) {
	files := make([]models.UploadedFile, 0, len(paths))
	for _, path := range paths {
		f, err := storage.Describe(path)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}

	res := &createResult{ProjectName: name}

	state, err := w.AddFiles(files)
	var rejected *intake.RejectedError
	if errors.As(err, &rejected) {
		res.Rejected = rejected.Names
		p.warn("%s", rejected.Error())
	} else if err != nil {
		return nil, err
	}
	if !state.CanProceed() {
		return nil, wizard.ErrNotEnoughFiles
	}
	w.Next()

	if detect {
		state, err = w.FindCandidates(ctx)
		if err != nil {
			return nil, fmt.Errorf("candidate detection: %w", err)
		}
		p.success("Detected candidate columns in %d files", state.Candidates.Len())
	}
	w.Next()

	if state = w.SetProjectName(name); !state.CanProceed() {
		return nil, wizard.ErrProjectNameRequired
	}
	state = w.Next()

	res.Files = models.FileNames(state.Files)
	res.CandidateColumns = state.Candidates

	id, err := w.Submit(ctx)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	res.ProjectID = id
	p.success("Project created")
	return res, nil
}
