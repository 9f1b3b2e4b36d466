package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/storage"
	"github.com/joinhub/console/internal/tracker"
	"github.com/spf13/cobra"
)

func newProjectsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "List, inspect and trigger join projects",
	}

	// loaded returns a tracker holding every project.
	loaded := func(cmd *cobra.Command) (*tracker.Tracker, error) {
		client, err := opts.client()
		if err != nil {
			return nil, err
		}
		t := tracker.New(client, opts.log().Named("tracker"))
		if err := t.Load(cmd.Context()); err != nil {
			return nil, err
		}
		return t, nil
	}
	single := func() (*tracker.Tracker, error) {
		client, err := opts.client()
		if err != nil {
			return nil, err
		}
		return tracker.New(client, opts.log().Named("tracker")), nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every project, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loaded(cmd)
			if err != nil {
				return err
			}
			return opts.printer(cmd).projects(projectList{Projects: t.Projects(), Counts: t.Counts()})
		},
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := single()
			if err != nil {
				return err
			}
			p, err := t.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.printer(cmd).project(p)
		},
	}

	trigger := func(use, short, done string, fn func(ctx context.Context, t *tracker.Tracker, id string) (models.Project, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := single()
				if err != nil {
					return err
				}
				p, err := fn(cmd.Context(), t, args[0])
				if err != nil {
					return err
				}
				out := opts.printer(cmd)
				out.success(done, p.Name)
				return out.project(p)
			},
		}
	}
	ci := trigger("ci", "Start candidate inspection", "Candidate inspection started for %s", func(ctx context.Context, t *tracker.Tracker, id string) (models.Project, error) {
		return t.CreateCI(ctx, id)
	})
	join := trigger("join", "Start the join", "Join started for %s", func(ctx context.Context, t *tracker.Tracker, id string) (models.Project, error) {
		return t.Join(ctx, id)
	})

	var outDir string
	result := &cobra.Command{
		Use:   "result ID",
		Short: "Download the joined result as <name>_result.csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			t := tracker.New(client, opts.log().Named("tracker"))
			p, err := t.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d, err := export.New(client, export.WithLogger(opts.log().Named("export"))).Result(cmd.Context(), p.ID, p.Name)
			if err != nil {
				return err
			}
			return save(cmd, opts, outDir, d)
		},
	}
	result.Flags().StringVarP(&outDir, "out", "d", ".", "Directory to save into")

	preview := &cobra.Command{
		Use:   "preview ID FILE",
		Short: "Show the backend's preview of a project file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := single()
			if err != nil {
				return err
			}
			content, err := t.Preview(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			v := struct {
				Content string `json:"content" yaml:"content"`
			}{content}
			return opts.printer(cmd).print(v, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, content)
			})
		},
	}

	cmd.AddCommand(list, get, ci, join, result, preview)
	return cmd
}

// save writes d into dir and reports the path.
func save(cmd *cobra.Command, opts *options, dir string, d *models.Download) error {
	downloads, err := storage.NewDownloads(dir)
	if err != nil {
		return err
	}
	path, err := downloads.Save(d)
	if err != nil {
		return err
	}
	v := struct {
		Saved string `json:"saved" yaml:"saved"`
		Bytes int    `json:"bytes" yaml:"bytes"`
	}{path, len(d.Body)}
	return opts.printer(cmd).print(v, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Saved:\t%s (%d bytes)\n", path, len(d.Body))
	})
}
