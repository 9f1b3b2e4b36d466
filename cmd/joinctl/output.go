package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return &printer{w: w, format: format}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

// print writes v as json or yaml, or calls table for the table format.
func (p *printer) print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// success prints a confirmation line. Machine formats stay clean.
func (p *printer) success(format string, args ...any) {
	if p.format != formatTable {
		return
	}
	fmt.Fprintln(p.w, color.GreenString(format, args...))
}

func (p *printer) warn(format string, args ...any) {
	if p.format != formatTable {
		return
	}
	fmt.Fprintln(p.w, color.YellowString(format, args...))
}

type projectList struct {
	Projects []models.Project   `json:"projects" yaml:"projects"`
	Counts   models.StatusCounts `json:"counts" yaml:"counts"`
}

func (p *printer) projects(list projectList) error {
	return p.print(list, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCI\tFILES\tCREATED")
		for _, pr := range list.Projects {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				pr.ID, pr.Name, statusColor(pr.Status), yesNo(pr.CI), len(pr.Files), pr.CreatedAt)
		}
		c := list.Counts
		fmt.Fprintf(tw, "\n%d projects: %d done, %d active, %d idle\n", c.Total, c.Done, c.Active, c.Idle)
	})
}

func (p *printer) project(pr models.Project) error {
	return p.print(pr, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "ID:\t%s\n", pr.ID)
		fmt.Fprintf(tw, "Name:\t%s\n", pr.Name)
		fmt.Fprintf(tw, "Status:\t%s\n", statusColor(pr.Status))
		fmt.Fprintf(tw, "CI:\t%s\n", yesNo(pr.CI))
		fmt.Fprintf(tw, "Created:\t%s\n", pr.CreatedAt)
		fmt.Fprintf(tw, "Files:\t%s\n", strings.Join(pr.Files, ", "))
		for _, name := range pr.CandidateColumns.FileNames() {
			fmt.Fprintf(tw, "  %s\t%s\n", name, strings.Join(pr.CandidateColumns[name], ", "))
		}
	})
}

func (p *printer) reviews(filter models.ReviewStatus, entries []models.ReviewEntry) error {
	v := struct {
		Filter  models.ReviewStatus  `json:"filter" yaml:"filter"`
		Entries []models.ReviewEntry `json:"entries" yaml:"entries"`
	}{filter, entries}
	return p.print(v, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tPROJECT\tREVIEW\tSTATUS\tFILES\tCREATED")
		for _, e := range entries {
			review := string(e.ModerationStatus())
			if review == "" {
				review = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				e.ID, e.ProjectName, review, statusColor(e.Status), len(e.Files), e.CreatedAt)
		}
	})
}

func (p *printer) job(job convert.Job, saved []string) error {
	v := struct {
		convert.Job `yaml:",inline"`
		Saved       []string `json:"saved,omitempty" yaml:"saved,omitempty"`
	}{job, saved}
	return p.print(v, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Job:\t%s\n", job.ID)
		fmt.Fprintf(tw, "Status:\t%s\n", job.Status)
		fmt.Fprintf(tw, "Converted:\t%d/%d\n", job.Converted, job.Total)
		if job.Error != "" {
			fmt.Fprintf(tw, "Error:\t%s\n", color.RedString(job.Error))
		}
		for _, path := range saved {
			fmt.Fprintf(tw, "Saved:\t%s\n", path)
		}
	})
}

func statusColor(s models.ProjectStatus) string {
	switch s {
	case models.ProjectStatusDone:
		return color.GreenString(string(s))
	case models.ProjectStatusActive:
		return color.CyanString(string(s))
	}
	return string(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
