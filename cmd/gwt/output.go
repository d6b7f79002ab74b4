package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/gwt-tools/gwt/internal/migration"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	phaseStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	secondaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// exitCode maps an error to the process exit status. Cancelled runs exit
// like an interrupted shell command.
func exitCode(err error) int {
	var cancelled *migration.ErrCancelled
	if errors.As(err, &cancelled) {
		return 130
	}
	return 1
}

// progressPrinter renders state changes as one line each
func progressPrinter(w io.Writer) migration.ProgressFunc {
	return func(s migration.State) {
		if !s.IsInProgress() {
			return
		}
		fmt.Fprintln(w, phaseStyle.Render("==>"), s.Description())
	}
}

func printPlan(w io.Writer, plan *migration.Plan) {
	fmt.Fprintln(w, headerStyle.Render("Migration plan"))
	fmt.Fprintf(w, "  Source:    %s\n", plan.Source)
	fmt.Fprintf(w, "  Target:    %s\n", plan.Target)
	fmt.Fprintf(w, "  Bare repo: %s\n", plan.BareRepo)
	fmt.Fprintf(w, "  Backup:    %s\n", plan.Backup)
	fmt.Fprintf(w, "  Space:     %s needed, %s available\n",
		humanize.IBytes(uint64(plan.SpaceNeeded)), humanize.IBytes(uint64(plan.SpaceAvailable)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Worktrees"))
	for _, wt := range plan.Worktrees {
		var tags string
		if wt.Main {
			tags += " [main]"
		}
		if wt.Detached {
			tags += " [detached]"
		}
		if wt.Dirty {
			tags += " [dirty]"
		}
		fmt.Fprintf(w, "  %s -> %s%s\n", wt.Source, wt.Target, secondaryStyle.Render(tags))
	}
	printWarnings(w, plan.Warnings)
}

func printReport(w io.Writer, report *migration.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, okStyle.Render(report.FinalState.Description()))
	for _, info := range report.Worktrees {
		mark := okStyle.Render("✓")
		if !info.Succeeded {
			mark = errorStyle.Render("✗")
		}
		name := info.Branch
		if name == "" {
			name = "(detached)"
		}
		line := fmt.Sprintf("  %s %s -> %s", mark, name, info.TargetPath)
		if info.Dirty {
			line += secondaryStyle.Render(" (uncommitted changes preserved)")
		}
		fmt.Fprintln(w, line)
	}
	printWarnings(w, report.Warnings)
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, msg := range warnings {
		fmt.Fprintln(w, warnStyle.Render("warning:"), msg)
	}
}
