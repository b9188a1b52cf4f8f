package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alc6/pgtemplate/changes"
	"github.com/alc6/pgtemplate/templates"
)

// TemplateStatus is the reportable state of one template.
type TemplateStatus struct {
	Template string         `json:"template"`
	State    string         `json:"state"`
	Exists   bool           `json:"exists"`
	BuiltAt  *time.Time     `json:"built_at,omitempty"`
	Changes  []StatusChange `json:"changes,omitempty"`
}

// StatusChange is one file difference in a TemplateStatus.
type StatusChange struct {
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason"`
}

func newTemplateStatus(report *changes.Report, exists bool) *TemplateStatus {
	status := &TemplateStatus{
		Template: report.Template,
		Exists:   exists,
	}

	switch {
	case report.BuiltAt.IsZero():
		status.State = templates.Absent.String()
	case report.Stale:
		status.State = templates.Stale.String()
	default:
		status.State = templates.Current.String()
	}
	if !report.BuiltAt.IsZero() {
		builtAt := report.BuiltAt
		status.BuiltAt = &builtAt
	}
	for _, c := range report.Changes {
		status.Changes = append(status.Changes, StatusChange{Path: c.Path, Reason: string(c.Reason)})
	}
	return status
}

// NeedsRebuild reports whether a clone would trigger a build.
func (s *TemplateStatus) NeedsRebuild() bool {
	return s.State != templates.Current.String() || !s.Exists
}

// FormatStatus formats a template status as human-readable text
func FormatStatus(status *TemplateStatus) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Template: %s\n", status.Template))
	sb.WriteString(fmt.Sprintf("State: %s\n", status.State))
	if status.BuiltAt != nil {
		sb.WriteString(fmt.Sprintf("Built: %s\n", status.BuiltAt.Format(time.RFC3339)))
	}

	database := "missing"
	if status.Exists {
		database = "present"
	}
	sb.WriteString(fmt.Sprintf("Database: %s\n", database))

	if status.State == templates.Stale.String() && len(status.Changes) > 0 {
		sb.WriteString("Changes:\n")
		for _, c := range status.Changes {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", c.Reason, c.Path))
		}
	}

	if status.NeedsRebuild() {
		sb.WriteString("Next clone will rebuild the template\n")
	}
	return sb.String()
}

// FormatStatusJSON formats a template status as indented JSON
func FormatStatusJSON(status *TemplateStatus) (string, error) {
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status to JSON: %w", err)
	}
	return string(out), nil
}

// FormatTemplateList formats recorded templates as a table
func FormatTemplateList(infos []templates.Info, sizes map[string]int64) string {
	if len(infos) == 0 {
		return "No templates\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-20s %6s %10s\n", "TEMPLATE", "BUILT", "FILES", "SIZE"))
	for _, info := range infos {
		size := "-"
		if info.Exists {
			size = formatBytes(sizes[info.Name])
		}
		sb.WriteString(fmt.Sprintf("%-32s %-20s %6d %10s\n",
			info.Name, info.CreatedAt.Format(time.RFC3339), info.Files, size))
	}
	return sb.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
