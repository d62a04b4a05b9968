package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/hostcompat/internal/hook"
	"github.com/dshills/hostcompat/internal/patch"
)

// Palette for text reports.
const (
	colorTitle   = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
)

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderText writes a human-readable report.
func RenderText(w io.Writer, r Report) error {
	var b strings.Builder

	env := r.Environment
	b.WriteString(titleStyle.Render("Environment") + "\n")
	field(&b, "generation", fmt.Sprintf("%d (%s)", env.Generation, orNone(env.HostVersion)))
	field(&b, "dependency", fmt.Sprintf("%d (%s)", env.DependencyMajor, orNone(env.DependencyVersion)))
	field(&b, "flags", orNone(strings.Join(env.Flags, ", ")))
	field(&b, "companions", orNone(strings.Join(env.Companions, ", ")))
	for _, path := range sortedKeys(env.Probes) {
		field(&b, "probe "+path, env.Probes[path])
	}
	for _, note := range env.Notes {
		b.WriteString("  " + warningStyle.Render("note: "+note) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Patches") + "\n")
	if len(r.Patches) == 0 {
		b.WriteString("  " + labelStyle.Render("none registered") + "\n")
	}
	for _, p := range r.Patches {
		line := fmt.Sprintf("  %-32s %-16s %s", p.Name, p.Stage, statusText(p.Status))
		if p.Error != "" {
			line += " " + errorStyle.Render(p.Error)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Events") + "\n")
	for _, ev := range r.Events {
		state := successStyle.Render("bound")
		detail := strings.Join(ev.Natives, ", ")
		if !ev.Bound {
			state = warningStyle.Render("unbound")
			detail = ev.Reason
		}
		fmt.Fprintf(&b, "  %-24s %s %s %s\n", ev.Name, state,
			labelStyle.Render(fmt.Sprintf("handlers=%d", ev.Handlers)), detail)
	}

	d := r.Deprecation
	b.WriteString("\n" + titleStyle.Render("Deprecation filter") + "\n")
	field(&b, "installed", fmt.Sprintf("%t", d.Installed))
	field(&b, "patterns", fmt.Sprintf("%d", len(d.Patterns)))
	field(&b, "suppressed", fmt.Sprintf("%d", d.Suppressed))

	if len(r.Metrics) > 0 {
		b.WriteString("\n" + titleStyle.Render("Metrics") + "\n")
		for _, s := range r.Metrics {
			fmt.Fprintf(&b, "  %s%s %g\n", s.Name, labelText(s.Labels), s.Value)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderBindings writes the event table as resolved for one generation.
func RenderBindings(w io.Writer, gen int, bindings []hook.Binding) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Events for generation %d", gen)) + "\n")
	for _, bd := range bindings {
		if bd.Bound {
			fmt.Fprintf(&b, "  %-24s %s %s\n", bd.Event, successStyle.Render("bound"), strings.Join(bd.Natives, ", "))
			continue
		}
		fmt.Fprintf(&b, "  %-24s %s %s\n", bd.Event, warningStyle.Render("unbound"), labelStyle.Render(bd.Reason))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label+":"), value)
}

func statusText(s patch.Status) string {
	switch s {
	case patch.StatusApplied:
		return successStyle.Render(s.String())
	case patch.StatusFailed:
		return errorStyle.Render(s.String())
	case patch.StatusSkipped:
		return labelStyle.Render(s.String())
	default:
		return warningStyle.Render(s.String())
	}
}

func labelText(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, k := range sortedKeys(labels) {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
