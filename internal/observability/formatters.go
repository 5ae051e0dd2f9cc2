// Package observability provides formatted output utilities for the operator CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for operator commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintRun outputs a summary of the run and what it is working on.
func (p *Printer) PrintRun(run *db.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:     %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Mode:    %s\n", run.Mode))
	sb.WriteString(fmt.Sprintf("Status:  %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Stage:   %s\n", run.CurrentStage))
	if run.Error != nil {
		sb.WriteString(fmt.Sprintf("Error:   %s\n", *run.Error))
	}
	if run.SubmissionURL != nil {
		sb.WriteString(fmt.Sprintf("Applied: %s\n", *run.SubmissionURL))
	}

	rc := run.Context
	if a := rc.JobAnalysis; a != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Role:    %s\n", a.Title))
		sb.WriteString(fmt.Sprintf("Company: %s\n", a.Company))
		if len(a.Keywords) > 0 {
			count := min(len(a.Keywords), maxItemsToShow)
			sb.WriteString(fmt.Sprintf("Skills:  %s", strings.Join(a.Keywords[:count], ", ")))
			if len(a.Keywords) > maxItemsToShow {
				sb.WriteString(fmt.Sprintf(" +%d", len(a.Keywords)-maxItemsToShow))
			}
			sb.WriteString("\n")
		}
	}
	if rc.TailoredResumePath != "" {
		sb.WriteString(fmt.Sprintf("Resume:  %s\n", rc.TailoredResumePath))
	}
	if rc.TailoredCoverLetterPath != "" {
		sb.WriteString(fmt.Sprintf("Letter:  %s\n", rc.TailoredCoverLetterPath))
	}
	if b := rc.PatchBundle; b != nil {
		sb.WriteString(fmt.Sprintf("Patches: %d/%d applied\n", len(rc.PatchAppliedIndexes), len(b.Operations)))
	}

	p.printBox("RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPending outputs the open approvals of a run with the commands that decide them.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintPending(runID uuid.UUID, pending []db.RunEvent) {
	if len(pending) == 0 {
		return
	}
	for _, e := range pending {
		fmt.Fprintf(p.out, "\nwaiting on %s/%s\n", e.Stage, e.Action)
		for _, key := range []string{"message", "reason"} {
			if text, ok := e.Payload[key].(string); ok && text != "" {
				fmt.Fprintf(p.out, "  %s\n", text)
			}
		}
		fmt.Fprintf(p.out, "  vulture approve %s %s\n", runID, e.ID)
		fmt.Fprintf(p.out, "  vulture reject  %s %s\n", runID, e.ID)
	}
}

// PrintEvents outputs a run's event log as a table.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvents(evts []db.RunEvent) {
	fmt.Fprintf(p.out, "%-8s  %-16s  %-32s  %s\n", "TIME", "STAGE", "ACTION", "APPROVAL")
	for _, e := range evts {
		fmt.Fprintf(p.out, "%-8s  %-16s  %-32s  %s\n",
			e.CreatedAt.Format("15:04:05"), e.Stage, truncate(e.Action, 32), approvalLabel(e.RequiresApproval, e.ApprovalState, e.ID))
	}
}

// PrintPayload outputs one live event on a single line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintPayload(e events.Payload) {
	fmt.Fprintf(p.out, "%-8s  %-16s  %-32s  %s\n",
		e.CreatedAt.Format("15:04:05"), e.Stage, truncate(e.Action, 32), approvalLabel(e.RequiresApproval, e.ApprovalState, e.EventID))
}

func approvalLabel(required bool, state string, id uuid.UUID) string {
	if !required {
		return "-"
	}
	return fmt.Sprintf("%s %s", state, id)
}
