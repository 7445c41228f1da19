package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/gogotex/mongomodel/internal/indexsync"
	"github.com/gogotex/mongomodel/pkg/logger"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	colorOK   = color.New(color.FgGreen, color.Bold).SprintFunc()
	colorWarn = color.New(color.FgYellow).SprintFunc()
	colorErr  = color.New(color.FgRed, color.Bold).SprintFunc()
)

type row struct {
	Collection string   `json:"collection" yaml:"collection"`
	Outcome    string   `json:"outcome" yaml:"outcome"`
	Duration   string   `json:"duration" yaml:"duration"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Indexes    []string `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

func validOutput(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

type indexLister interface {
	IndexNames(ctx context.Context) ([]string, error)
}

func listIndexes(ctx context.Context, targets []indexsync.Target) map[string][]string {
	out := map[string][]string{}
	for _, t := range targets {
		l, ok := t.(indexLister)
		if !ok {
			continue
		}
		names, err := l.IndexNames(ctx)
		if err != nil {
			logger.Warnf("listing indexes of %q: %v", t.CollectionName(), err)
			continue
		}
		sort.Strings(names)
		out[t.CollectionName()] = names
	}
	return out
}

func rows(results []indexsync.Result, names map[string][]string) []row {
	out := make([]row, 0, len(results))
	for _, r := range results {
		rw := row{
			Collection: r.Collection,
			Outcome:    r.Outcome,
			Duration:   r.Duration.Round(1e6).String(),
			Indexes:    names[r.Collection],
		}
		if r.Err != nil {
			rw.Error = r.Err.Error()
		}
		out = append(out, rw)
	}
	return out
}

func render(w io.Writer, format string, results []indexsync.Result, names map[string][]string) error {
	data := rows(results, names)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(data)
	}

	table := tablewriter.NewWriter(w)
	header := []string{"Collection", "Outcome", "Duration", "Error"}
	if names != nil {
		header = append(header, "Indexes")
	}
	table.SetHeader(header)
	for _, r := range data {
		line := []string{r.Collection, paint(r.Outcome), r.Duration, r.Error}
		if names != nil {
			line = append(line, strings.Join(r.Indexes, ", "))
		}
		table.Append(line)
	}
	table.Render()
	return nil
}

func paint(outcome string) string {
	switch outcome {
	case indexsync.OutcomeOK:
		return colorOK(outcome)
	case indexsync.OutcomeSkipped:
		return colorWarn(outcome)
	}
	return colorErr(outcome)
}
