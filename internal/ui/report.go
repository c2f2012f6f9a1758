package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/edit-ghi/internal/cache"
	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/sync"
)

// ReportOptions controls text rendering.
type ReportOptions struct {
	// Verbose also lists unchanged items
	Verbose bool
}

// symbols mark each action in text output.
var symbols = map[reconcile.Action]string{
	reconcile.ActionNoOp:         "=",
	reconcile.ActionCreateRemote: "+",
	reconcile.ActionUpdateRemote: "~",
	reconcile.ActionUpdateLocal:  "<",
	reconcile.ActionCreateLocal:  ">",
	reconcile.ActionIgnored:      "-",
}

// RenderReport writes a human readable report: one line per item and a
// summary line.
func (s *Styles) RenderReport(w io.Writer, report *sync.Report, opts ReportOptions) error {
	var b strings.Builder

	if report.DryRun {
		b.WriteString(s.warn.Render("Dry run: nothing was applied") + "\n")
	}
	for _, res := range report.Results {
		if res.Action == reconcile.ActionNoOp && !opts.Verbose && !res.Failed() {
			continue
		}
		b.WriteString(s.resultLine(res))
		b.WriteByte('\n')
	}

	c := report.Counts()
	summary := fmt.Sprintf("%d created, %d updated, %d local, %d unchanged, %d ignored",
		c.CreateRemote, c.UpdateRemote, c.UpdateLocal+c.CreateLocal, c.NoOp, c.Ignored)
	if c.Failed > 0 {
		summary += ", " + s.fail.Render(fmt.Sprintf("%d failed", c.Failed))
	}
	b.WriteString(s.bold.Render("Summary:") + " " + summary)
	b.WriteString(s.muted.Render(fmt.Sprintf(" (%d remote issues, %s)",
		report.RemoteCount, report.Duration().Round(time.Millisecond))))
	b.WriteByte('\n')
	for _, path := range report.LocalWrites {
		b.WriteString(s.muted.Render("Wrote "+path) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (s *Styles) resultLine(res sync.ItemResult) string {
	symbol := symbols[res.Action]
	if symbol == "" {
		symbol = "?"
	}

	style := s.accent
	switch {
	case res.Failed():
		style = s.fail
	case res.Action == reconcile.ActionNoOp:
		style = s.muted
	case res.Action == reconcile.ActionIgnored:
		style = s.warn
	case res.Action == reconcile.ActionCreateRemote, res.Action == reconcile.ActionCreateLocal:
		style = s.pass
	}

	number := ""
	if res.Number > 0 {
		number = fmt.Sprintf("#%d", res.Number)
	}
	line := style.Render(fmt.Sprintf("%s %-13s", symbol, res.Action)) + " " + fmt.Sprintf("%-5s %s", number, res.Title)

	var details []string
	if res.Summary != "" {
		details = append(details, res.Summary)
	}
	if res.Reason != "" {
		details = append(details, res.Reason)
	}
	if res.Source != "" {
		details = append(details, res.Source)
	}
	if len(details) > 0 {
		line += s.muted.Render(" (" + strings.Join(details, "; ") + ")")
	}
	if res.Failed() {
		line += "\n    " + s.fail.Render("error: "+res.Error)
	}
	return line
}

// EncodeReport writes report as json or yaml.
func EncodeReport(w io.Writer, report *sync.Report, format string) error {
	return Encode(w, report, format)
}

// Encode writes v as indented json or yaml.
func Encode(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// RenderStatus writes the cache location, size, counts and last run.
func (s *Styles) RenderStatus(w io.Writer, stats cache.Stats, last *cache.Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", s.bold.Render("edit-ghi cache status"))
	fmt.Fprintf(&b, "Location: %s\n", stats.Path)
	fmt.Fprintf(&b, "Size: %s\n", FormatSize(stats.SizeBytes))
	fmt.Fprintf(&b, "Snapshot issues: %d\n", stats.Issues)
	fmt.Fprintf(&b, "Runs recorded: %d\n", stats.Runs)
	if last == nil {
		fmt.Fprintf(&b, "Last run: %s\n", s.muted.Render("never"))
	} else {
		fmt.Fprintf(&b, "Last run: %s %s (%s, %s)\n",
			last.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.muted.Render(last.ID), last.Tracker, countsLine(last.Counts))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHistory writes one line per run, newest first.
func (s *Styles) RenderHistory(w io.Writer, runs []cache.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, s.muted.Render("No runs recorded"))
		return err
	}
	var b strings.Builder
	for _, r := range runs {
		when := r.StartedAt.Local().Format("2006-01-02 15:04:05")
		mode := ""
		if r.DryRun {
			mode = s.warn.Render(" dry-run")
		}
		status := s.pass.Render("ok")
		if r.Counts.Failed > 0 {
			status = s.fail.Render(fmt.Sprintf("%d failed", r.Counts.Failed))
		}
		fmt.Fprintf(&b, "%s  %s  %-5s %s  %s%s\n", when, s.muted.Render(shortID(r.ID)), r.Tracker,
			countsLine(r.Counts), status, mode)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func countsLine(c sync.Counts) string {
	return fmt.Sprintf("+%d ~%d <%d >%d =%d -%d",
		c.CreateRemote, c.UpdateRemote, c.UpdateLocal, c.CreateLocal, c.NoOp, c.Ignored)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatSize renders a byte count as B, KB or MB.
func FormatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
