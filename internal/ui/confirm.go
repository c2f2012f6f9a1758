package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/steveyegge/edit-ghi/internal/reconcile"
)

// ErrNotInteractive is returned by Confirm when stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation requires an interactive terminal")

// PlanSummary lists the decisions that change something, one per line.
func PlanSummary(decisions []reconcile.Decision) string {
	var lines []string
	for _, d := range decisions {
		if !d.Action.MutatesRemote() && !d.Action.MutatesLocal() {
			continue
		}
		title := ""
		switch {
		case d.Item != nil:
			title = d.Item.Title
		case d.Remote != nil:
			title = d.Remote.Title
		}
		line := fmt.Sprintf("%s %s", symbols[d.Action], title)
		if d.Remote != nil && d.Remote.Number > 0 {
			line += fmt.Sprintf(" #%d", d.Remote.Number)
		}
		if s := reconcile.Summarize(d.Changes); s != "" {
			line += " (" + s + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Confirm asks on the terminal whether to apply the planned decisions.
// It matches sync.ConfirmFunc.
func Confirm(ctx context.Context, decisions []reconcile.Decision) (bool, error) {
	if !IsInteractive(os.Stdin) {
		return false, ErrNotInteractive
	}

	apply := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Apply these changes?").
				Description(PlanSummary(decisions)).
				Affirmative("Apply").
				Negative("Cancel").
				Value(&apply),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return apply, nil
}
