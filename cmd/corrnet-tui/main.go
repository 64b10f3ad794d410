package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-corrnet/pkg/artifact"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	communitiesView
	membersView
	edgesView
	lookupView
	numViews
)

var tabNames = []string{"Dashboard", "Communities", "Members", "Edges", "Lookup"}

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Up, k.Down},
		{k.Quit},
	}
}

type model struct {
	snap        *artifact.Snapshot
	currentView view
	selected    int // community shown in the members view

	communityTable table.Model
	memberTable    table.Model
	edgeTable      table.Model
	lookupInput    textinput.Model
	lookupResult   string

	help       help.Model
	keys       keyMap
	width      int
	height     int
	message    string
	messageErr bool
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(snap *artifact.Snapshot) model {
	ti := textinput.New()
	ti.Placeholder = "AAPL"
	ti.CharLimit = 32
	ti.Width = 20

	m := model{
		snap:        snap,
		currentView: dashboardView,
		communityTable: newTable([]table.Column{
			{Title: "ID", Width: 5},
			{Title: "Size", Width: 6},
			{Title: "Density", Width: 8},
			{Title: "Internal W", Width: 11},
			{Title: "Members", Width: 50},
		}, 15),
		memberTable: newTable([]table.Column{
			{Title: "Ticker", Width: 10},
			{Title: "Degree", Width: 7},
			{Title: "Weighted", Width: 10},
			{Title: "PageRank", Width: 10},
		}, 15),
		edgeTable: newTable([]table.Column{
			{Title: "Source", Width: 10},
			{Title: "Target", Width: 10},
			{Title: "Weight", Width: 9},
			{Title: "ρ", Width: 9},
			{Title: "Same community", Width: 15},
		}, 15),
		lookupInput: ti,
		help:        help.New(),
		keys:        keys,
	}
	m.communityTable.SetRows(m.communityRows())
	m.edgeTable.SetRows(m.edgeRows(100))
	m.selectCommunity(0)
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.setView((m.currentView + 1) % numViews)
			return m, nil

		case key.Matches(msg, m.keys.ShiftTab):
			m.setView((m.currentView + numViews - 1) % numViews)
			return m, nil

		case key.Matches(msg, m.keys.Enter):
			switch m.currentView {
			case communitiesView:
				if row := m.communityTable.Cursor(); row >= 0 {
					m.selectCommunity(row)
					m.setView(membersView)
				}
				return m, nil
			case lookupView:
				m.lookup(strings.TrimSpace(m.lookupInput.Value()))
				return m, nil
			}
		}
	}

	// Update focused component
	switch m.currentView {
	case communitiesView:
		m.communityTable, cmd = m.communityTable.Update(msg)
		cmds = append(cmds, cmd)
	case membersView:
		m.memberTable, cmd = m.memberTable.Update(msg)
		cmds = append(cmds, cmd)
	case edgesView:
		m.edgeTable, cmd = m.edgeTable.Update(msg)
		cmds = append(cmds, cmd)
	case lookupView:
		m.lookupInput, cmd = m.lookupInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) setView(v view) {
	m.currentView = v
	if v == lookupView {
		m.lookupInput.Focus()
	} else {
		m.lookupInput.Blur()
	}
}

func (m *model) selectCommunity(id int) {
	p := m.snap.Partition
	if p == nil || id < 0 || id >= len(p.Communities) {
		return
	}
	m.selected = id

	rows := make([]table.Row, 0, p.Communities[id].Size)
	for _, ticker := range m.rankedMembers(id) {
		rows = append(rows, table.Row{
			ticker,
			fmt.Sprintf("%d", m.degree(ticker)),
			fmt.Sprintf("%.3f", m.weightedDegree(ticker)),
			fmt.Sprintf("%.5f", m.snap.PageRank[ticker]),
		})
	}
	m.memberTable.SetRows(rows)
	m.memberTable.SetCursor(0)
}

// rankedMembers orders a community's members by weighted degree, strongest first
func (m model) rankedMembers(id int) []string {
	members := append([]string(nil), m.snap.Partition.Communities[id].Members...)
	sort.SliceStable(members, func(i, j int) bool {
		return m.weightedDegree(members[i]) > m.weightedDegree(members[j])
	})
	return members
}

func (m model) degree(ticker string) int {
	if m.snap.Graph == nil {
		return 0
	}
	return m.snap.Graph.Degree(ticker)
}

func (m model) weightedDegree(ticker string) float64 {
	if m.snap.Graph == nil {
		return 0
	}
	return m.snap.Graph.WeightedDegree(ticker)
}

func (m model) communityRows() []table.Row {
	if m.snap.Partition == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(m.snap.Partition.Communities))
	for _, c := range m.snap.Partition.Communities {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.ID),
			fmt.Sprintf("%d", c.Size),
			fmt.Sprintf("%.3f", c.Density),
			fmt.Sprintf("%.3f", c.InternalWeight),
			truncate(strings.Join(c.Members, " "), 50),
		})
	}
	return rows
}

// edgeRows lists the strongest edges by |weight|
func (m model) edgeRows(limit int) []table.Row {
	if m.snap.Graph == nil {
		return nil
	}
	edges := m.snap.Graph.Edges()
	sort.SliceStable(edges, func(i, j int) bool {
		return abs(edges[i].Weight) > abs(edges[j].Weight)
	})
	if len(edges) > limit {
		edges = edges[:limit]
	}

	rows := make([]table.Row, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, table.Row{
			e.Source,
			e.Target,
			fmt.Sprintf("%.4f", e.Weight),
			fmt.Sprintf("%+.4f", e.Correlation),
			sameCommunity(m.snap, e),
		})
	}
	return rows
}

func sameCommunity(snap *artifact.Snapshot, e network.Edge) string {
	if snap.Partition == nil {
		return ""
	}
	a, okA := snap.Partition.NodeCommunity[e.Source]
	b, okB := snap.Partition.NodeCommunity[e.Target]
	if okA && okB && a == b {
		return fmt.Sprintf("yes (%d)", a)
	}
	return "no"
}

func (m *model) lookup(ticker string) {
	if ticker == "" {
		m.message = "Ticker cannot be empty"
		m.messageErr = true
		return
	}
	ticker = strings.ToUpper(ticker)

	if m.snap.Graph == nil || m.snap.Partition == nil {
		m.message = "Snapshot has no network"
		m.messageErr = true
		return
	}
	if _, ok := m.snap.Graph.Index(ticker); !ok {
		for _, e := range m.snap.Exclusions {
			if e.Ticker == ticker {
				m.message = fmt.Sprintf("%s was excluded: %s", ticker, e.Reason)
				m.messageErr = true
				return
			}
		}
		m.message = fmt.Sprintf("%s is not in this run", ticker)
		m.messageErr = true
		return
	}

	var s strings.Builder
	community := m.snap.Partition.NodeCommunity[ticker]
	s.WriteString(fmt.Sprintf("%s  community %d\n", ticker, community))
	s.WriteString(fmt.Sprintf("Degree %d, weighted %.3f, PageRank %.5f\n\n",
		m.degree(ticker), m.weightedDegree(ticker), m.snap.PageRank[ticker]))

	neighbors := m.snap.Graph.AdjacencyList()[ticker]
	sort.SliceStable(neighbors, func(i, j int) bool {
		return abs(neighbors[i].Weight) > abs(neighbors[j].Weight)
	})
	for i, n := range neighbors {
		if i == 15 {
			s.WriteString(fmt.Sprintf("  ... and %d more\n", len(neighbors)-15))
			break
		}
		marker := " "
		if m.snap.Partition.NodeCommunity[n.Vertex] == community {
			marker = "●"
		}
		bar := strings.Repeat("█", int(abs(n.Weight)*20))
		s.WriteString(fmt.Sprintf("  %s %-10s %+.3f %s\n", marker, n.Vertex, n.Weight, bar))
	}
	if len(neighbors) == 0 {
		s.WriteString("  isolated: no correlation above the threshold\n")
	}

	m.lookupResult = s.String()
	m.message = ""
	m.messageErr = false
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("📈 Correlation Network - run %s", m.snap.RunID)))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case communitiesView:
		s.WriteString(m.renderTable("Communities", m.communityTable, "Enter shows the members of a community"))
	case membersView:
		s.WriteString(m.renderTable(fmt.Sprintf("Community %d", m.selected), m.memberTable, "Ranked by weighted degree"))
	case edgesView:
		s.WriteString(m.renderTable("Strongest Edges", m.edgeTable, "Ranked by |weight|"))
	case lookupView:
		s.WriteString(m.renderLookup())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("✗ " + m.message))
		} else {
			s.WriteString(successStyle.Render("✓ " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m model) renderTabs() string {
	var rendered []string
	for i, tab := range tabNames {
		if view(i) == m.currentView {
			rendered = append(rendered, activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) renderDashboard() string {
	snap := m.snap
	vertices, edges, isolated := 0, 0, 0
	if snap.Graph != nil {
		vertices = snap.Graph.NumVertices()
		edges = snap.Graph.EdgeCount()
		isolated = len(snap.Graph.Isolated())
	}
	communities, modularity, passes := 0, 0.0, 0
	if snap.Partition != nil {
		communities = snap.Partition.NumCommunities()
		modularity = snap.Partition.Modularity
		passes = snap.Partition.Passes
	}

	network := fmt.Sprintf(`🔗 Network
━━━━━━━━━━━━━━━
Vertices:   %d
Edges:      %d
Isolated:   %d
Clustering: %.3f
Threshold:  %.2f (%s)`,
		vertices, edges, isolated, snap.AverageClustering,
		snap.Config.Network.Threshold, snap.Config.Network.WeightMode,
	)

	partition := fmt.Sprintf(`🧩 Partition
━━━━━━━━━━━━━━━
Communities: %d
Modularity:  %.4f
Passes:      %d

⚠ Exclusions
━━━━━━━━━━━━━━━
Assets:          %d
Undefined pairs: %d
Negative edges:  %d`,
		communities, modularity, passes,
		len(snap.Exclusions), len(snap.UndefinedPairs), snap.NegativeEdgesExcluded,
	)

	run := fmt.Sprintf(`⏱ Run
━━━━━━━━━━━━━━━
Started:  %s
Duration: %s`,
		snap.StartedAt.Format("2006-01-02 15:04:05"),
		snap.Duration,
	)

	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		statsBoxStyle.Render(network),
		statsBoxStyle.Render(partition),
		statsBoxStyle.Render(run),
	))
}

func (m model) renderTable(title string, t table.Model, hint string) string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(title))
	s.WriteString("\n\n")
	s.WriteString(t.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(hint))
	return contentStyle.Render(s.String())
}

func (m model) renderLookup() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Ticker Lookup"))
	s.WriteString("\n\n")
	s.WriteString(m.lookupInput.View())
	s.WriteString("\n\n")
	if m.lookupResult != "" {
		s.WriteString(statsBoxStyle.Render(m.lookupResult))
	} else {
		s.WriteString(helpStyle.Render("Type a ticker and press Enter; ● marks same-community neighbours"))
	}
	return contentStyle.Render(s.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func main() {
	flag.Parse()
	path := "./data/processed/run.snapshot"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	snap, err := artifact.OpenSnapshot(path)
	if err != nil {
		log.Fatalf("Failed to open snapshot: %v", err)
	}

	p := tea.NewProgram(initialModel(snap), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
