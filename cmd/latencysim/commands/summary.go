package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pulseframe/netaudio/pkg/latency"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f5f"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00ff9f")).
			Padding(0, 1)
)

func renderSummary(sum *summary) string {
	var b strings.Builder

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-16s", label)), value)
	}

	row("Session", sum.SessionID)
	row("Simulated", time.Duration(sum.Simulated).String())
	row("Backend/Profile", fmt.Sprintf("%v / %v", sum.Tuning.Backend, sum.Tuning.Profile))
	if sum.Tuning.TargetLatency != nil {
		row("Target", time.Duration(*sum.Tuning.TargetLatency).String())
	}
	row("Packets", fmt.Sprintf("%d (%d dropped)", sum.Packets, sum.DroppedPackets))
	row("Queue latency", fmt.Sprintf("min %v / max %v / last %v",
		time.Duration(sum.MinNIQ), time.Duration(sum.MaxNIQ), time.Duration(sum.LastNIQ)))
	if sum.FinalScaling != 0 {
		row("Scaling", fmt.Sprintf("min %.6f / max %.6f / final %.6f",
			sum.MinScaling, sum.MaxScaling, sum.FinalScaling))
	} else {
		row("Scaling", "never updated")
	}
	if sum.Failed {
		row("Outcome", badStyle.Render(fmt.Sprintf("FAILED at sample %d: latency out of bounds", sum.FailedAt)))
	} else {
		row("Outcome", "completed")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// renderReport formats one stored report for the replay command.
func renderReport(r latency.Report) string {
	return fmt.Sprintf("%s pos=%-12d scaling=%.6f niq=%v stall=%v e2e=%v jitter=%v",
		labelStyle.Render(r.Profile),
		r.Position, r.Scaling,
		r.Metrics.NIQLatency, r.Metrics.NIQStalling, r.Metrics.E2ELatency, r.Metrics.Jitter)
}
