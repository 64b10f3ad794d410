package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-corrnet/pkg/artifact"
	"github.com/dd0wney/cluso-corrnet/pkg/config"
	"github.com/dd0wney/cluso-corrnet/pkg/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2).
			MarginRight(1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// maxListed caps how many members or files a summary line shows
const maxListed = 8

func renderSummary(cfg *config.Config, res *pipeline.Result, written []artifact.Written) string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("📈 %s  run %s", cfg.Run.Name, res.RunID)))
	s.WriteString("\n\n")

	data := fmt.Sprintf(`📊 Data
Assets:      %d
Excluded:    %d
Return rows: %d
Undefined:   %d pairs`,
		res.Returns.NumAssets(),
		len(res.Exclusions),
		res.Returns.Rows(),
		len(res.UndefinedPairs),
	)

	graph := fmt.Sprintf(`🔗 Network (τ = %.2f)
Vertices:    %d
Edges:       %d
Isolated:    %d
Components:  %d
Clustering:  %.3f`,
		cfg.Network.Threshold,
		res.Graph.NumVertices(),
		res.Graph.EdgeCount(),
		len(res.Graph.Isolated()),
		res.Components.NumCommunities(),
		res.AverageClustering,
	)

	partition := fmt.Sprintf(`🧩 Communities
Count:       %d
Modularity:  %.4f
Passes:      %d
Time:        %s`,
		res.Partition.NumCommunities(),
		res.Partition.Modularity,
		res.Partition.Passes,
		res.Duration.Round(time.Millisecond),
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(data), boxStyle.Render(graph), boxStyle.Render(partition)))
	s.WriteString("\n\n")

	for _, c := range res.Partition.Communities {
		members := c.Members
		more := ""
		if len(members) > maxListed {
			more = dimStyle.Render(fmt.Sprintf(" +%d more", len(members)-maxListed))
			members = members[:maxListed]
		}
		s.WriteString(fmt.Sprintf("  %3d │ %3d │ %s%s\n", c.ID, c.Size, strings.Join(members, " "), more))
	}

	if res.NegativeEdgesExcluded > 0 {
		s.WriteString("\n")
		s.WriteString(warnStyle.Render(fmt.Sprintf("⚠ %d negative edges excluded from community detection", res.NegativeEdgesExcluded)))
		s.WriteString("\n")
	}
	if len(res.Exclusions) > 0 {
		s.WriteString("\n")
		for i, e := range res.Exclusions {
			if i == maxListed {
				s.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more excluded\n", len(res.Exclusions)-maxListed)))
				break
			}
			s.WriteString(warnStyle.Render("  ✗ " + e.Error()))
			s.WriteString("\n")
		}
	}

	if len(written) > 0 {
		s.WriteString("\n💾 Artifacts\n")
		for _, w := range written {
			s.WriteString(dimStyle.Render(fmt.Sprintf("  %s (%d bytes)", w.Location, w.Bytes)))
			s.WriteString("\n")
		}
	}

	return s.String()
}
