package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cxref/internal/index"
	"cxref/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatYAML  OutputFormat = "yaml"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML formats the response as YAML
func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ResultsResponse:
		return formatResultsHuman(v), nil
	case *TreeResponse:
		return formatTreeHuman(v), nil
	case *NodeResponse:
		return formatNodeHuman(v), nil
	case *StatusResponse:
		return formatStatusHuman(v), nil
	case *index.BuildResult:
		return formatBuildHuman(v), nil
	case *CanonicalizeResponse:
		return v.Path, nil
	case *ContextResponse:
		return v.Display, nil
	case version.BuildInfo:
		return v.String(), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

// formatResultsHuman prints one "<location>\t<context>" line per result.
func formatResultsHuman(resp *ResultsResponse) string {
	lines := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Location == "" {
			lines = append(lines, strings.TrimSpace(fmt.Sprintf("#%d %s %s", r.Index, r.Type, r.Name)))
			continue
		}
		lines = append(lines, r.Display())
	}
	return strings.Join(lines, "\n")
}

func formatTreeHuman(resp *TreeResponse) string {
	var b strings.Builder
	for i, r := range resp.Results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", r.Depth))
		b.WriteString(fmt.Sprintf("#%d %s", r.Index, r.Abbrev))
		if r.Name != "" {
			b.WriteString(" " + r.Name)
		}
		if r.Location != "" {
			b.WriteString("  " + r.Location)
		}
	}
	return b.String()
}

func formatNodeHuman(resp *NodeResponse) string {
	var b strings.Builder
	n := resp.Node
	b.WriteString(fmt.Sprintf("Node #%d\n", n.Index))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("Type: %s (%s)\n", n.Type, n.Abbrev))
	if n.Name != "" {
		b.WriteString(fmt.Sprintf("Name: %s\n", n.Name))
	}
	if n.Location != "" {
		b.WriteString(fmt.Sprintf("Location: %s\n", n.Location))
	}
	if n.Context != "" {
		b.WriteString(fmt.Sprintf("Context: %s\n", n.Context))
	}
	b.WriteString(fmt.Sprintf("Parent: %d\n", n.Parent))
	if len(resp.Children) > 0 {
		b.WriteString(fmt.Sprintf("\nChildren (%d):\n", len(resp.Children)))
		for _, c := range resp.Children {
			b.WriteString(fmt.Sprintf("  #%d %s %s\n", c.Index, c.Abbrev, c.Name))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBuildHuman(res *index.BuildResult) string {
	var b strings.Builder
	if res.Skipped {
		b.WriteString("Index is up to date")
		if res.Meta != nil {
			b.WriteString(fmt.Sprintf(" (build %s, %d nodes, %d files)", shortID(res.Meta.BuildID), res.Meta.NodeCount, res.Meta.FileCount))
		}
		b.WriteString("\nRun 'cxref index --force' to rebuild anyway.")
		return b.String()
	}

	b.WriteString("Index built\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	if m := res.Meta; m != nil {
		b.WriteString(fmt.Sprintf("  Build:     %s\n", m.BuildID))
		b.WriteString(fmt.Sprintf("  Store:     %s (%s)\n", m.StorePath, formatBytes(int64(res.StoreBytes))))
		b.WriteString(fmt.Sprintf("  Front-end: %s\n", m.Frontend))
		b.WriteString(fmt.Sprintf("  Nodes:     %d\n", m.NodeCount))
		b.WriteString(fmt.Sprintf("  Files:     %d\n", m.FileCount))
		b.WriteString(fmt.Sprintf("  Duration:  %s\n", m.Duration))
	}
	if len(res.UnitErrors) > 0 {
		b.WriteString(fmt.Sprintf("\nSkipped %d of %d translation units:\n", len(res.UnitErrors), res.Units))
		for _, ue := range res.UnitErrors {
			b.WriteString(fmt.Sprintf("  ! %s: %s\n", ue.Path, ue.Error))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatusHuman(resp *StatusResponse) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("cxref status - v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Project: %s\n", resp.Root))
	b.WriteString(fmt.Sprintf("Store:   %s\n\n", resp.StorePath))

	if resp.Meta == nil {
		b.WriteString("✗ No index built yet\n")
		b.WriteString("  $ cxref index\n")
	} else {
		icon := "✓"
		text := "Fresh"
		if !resp.Freshness.Fresh {
			icon = "✗"
			text = "Stale"
			if resp.Freshness.RequiresRebuild {
				text = "Needs rebuild"
			}
		}
		b.WriteString(fmt.Sprintf("%s Index: %s", icon, text))
		if resp.Freshness.Reason != "" {
			b.WriteString(" (" + resp.Freshness.Reason + ")")
		}
		b.WriteString("\n")
		m := resp.Meta
		b.WriteString(fmt.Sprintf("  Build:     %s (%s ago)\n", m.BuildID, resp.Freshness.IndexAge))
		b.WriteString(fmt.Sprintf("  Front-end: %s\n", m.Frontend))
		b.WriteString(fmt.Sprintf("  Nodes:     %d\n", m.NodeCount))
		b.WriteString(fmt.Sprintf("  Files:     %d\n", m.FileCount))
		b.WriteString(fmt.Sprintf("  Format:    v%d, id width %d\n", m.FormatVersion, m.IDWidth))
		for _, c := range resp.Freshness.Changes {
			b.WriteString(fmt.Sprintf("    %s %s\n", changeMarker(string(c.ChangeType)), c.Path))
		}
	}

	if len(resp.Builds) > 0 {
		b.WriteString("\nRecent builds:\n")
		for _, bl := range resp.Builds {
			b.WriteString(fmt.Sprintf("  %s  %s  %-6s  %d nodes  %d files  %s\n",
				shortID(bl.ID), bl.StartedAt.Local().Format("2006-01-02 15:04:05"), bl.Status,
				bl.NodeCount, bl.FileCount, bl.Duration().Round(time.Millisecond)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func changeMarker(changeType string) string {
	switch changeType {
	case "added":
		return "+"
	case "deleted":
		return "-"
	}
	return "~"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatBytes formats byte size in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
