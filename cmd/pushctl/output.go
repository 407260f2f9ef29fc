package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/pushkit/pkg/push"
	"github.com/dmitrymomot/pushkit/pkg/registry"
)

type statusView struct {
	State          string   `yaml:"state"`
	Supported      bool     `yaml:"supported"`
	Subscribed     bool     `yaml:"subscribed"`
	Permission     string   `yaml:"permission"`
	Endpoint       string   `yaml:"endpoint,omitempty"`
	Label          string   `yaml:"label,omitempty"`
	PendingCleanup []string `yaml:"pendingCleanup,omitempty"`
	LastError      string   `yaml:"lastError,omitempty"`
}

type notificationView struct {
	ID        string `yaml:"id"`
	Kind      string `yaml:"kind"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body,omitempty"`
	Read      bool   `yaml:"read"`
	CreatedAt string `yaml:"createdAt"`
}

type feedView struct {
	Unread        int                `yaml:"unread"`
	Notifications []notificationView `yaml:"notifications"`
}

type resultView struct {
	Result string `yaml:"result"`
	ID     string `yaml:"id,omitempty"`
}

// printer renders command results as styled text or YAML. Styles degrade to
// plain text when w is not a terminal.
type printer struct {
	w    io.Writer
	yaml bool

	key    lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	dim    lipgloss.Style
	title  lipgloss.Style
	unread lipgloss.Style
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	if format != "text" && format != "yaml" {
		return nil, fmt.Errorf("%w: unknown output format %q", errUsage, format)
	}
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		yaml:   format == "yaml",
		key:    r.NewStyle().Foreground(lipgloss.Color("245")).Width(16),
		good:   r.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true),
		bad:    r.NewStyle().Foreground(lipgloss.Color("#f87171")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("240")),
		title:  r.NewStyle().Bold(true),
		unread: r.NewStyle().Foreground(lipgloss.Color("#60a5fa")),
	}, nil
}

func (p *printer) encode(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (p *printer) row(key, value string) {
	fmt.Fprintln(p.w, p.key.Render(key)+value)
}

func (p *printer) status(s push.Status) error {
	v := statusView{
		State:          string(s.State),
		Supported:      s.Supported,
		Subscribed:     s.Subscribed,
		Permission:     string(s.Permission),
		Label:          s.Label,
		PendingCleanup: s.PendingCleanup,
	}
	if s.Subscription != nil {
		v.Endpoint = s.Subscription.Endpoint
	}
	if s.LastError != nil {
		v.LastError = s.LastError.Error()
	}
	if p.yaml {
		return p.encode(v)
	}

	state := v.State
	switch s.State {
	case push.StateSubscribed:
		state = p.good.Render(state)
	case push.StateError, push.StateUnsupported:
		state = p.bad.Render(state)
	}
	p.row("state", state)
	p.row("permission", v.Permission)
	if v.Label != "" {
		p.row("device", v.Label)
	}
	if v.Endpoint != "" {
		p.row("endpoint", p.dim.Render(v.Endpoint))
	}
	for _, e := range v.PendingCleanup {
		p.row("pending cleanup", p.dim.Render(e))
	}
	if v.LastError != "" {
		p.row("last error", p.bad.Render(v.LastError))
	}
	return nil
}

func (p *printer) preferences(prefs registry.Preferences) error {
	if p.yaml {
		return p.encode(prefs)
	}
	values := map[registry.Field]string{
		registry.FieldEnabled:       strconv.FormatBool(prefs.Enabled),
		registry.FieldPush:          strconv.FormatBool(prefs.Push),
		registry.FieldEmail:         strconv.FormatBool(prefs.Email),
		registry.FieldBillReminders: strconv.FormatBool(prefs.BillReminders),
		registry.FieldPostFailures:  strconv.FormatBool(prefs.PostFailures),
		registry.FieldMentions:      strconv.FormatBool(prefs.Mentions),
		registry.FieldMarketing:     strconv.FormatBool(prefs.Marketing),
		registry.FieldDigest:        string(prefs.Digest),
	}
	for _, f := range registry.Fields {
		value := values[f]
		if f != registry.FieldEnabled && f != registry.FieldDigest && !prefs.Enabled {
			value = p.dim.Render(value + " (muted)")
		}
		p.row(string(f), value)
	}
	return nil
}

func (p *printer) notifications(items []registry.Notification, unread int) error {
	v := feedView{Unread: unread, Notifications: make([]notificationView, 0, len(items))}
	for _, n := range items {
		v.Notifications = append(v.Notifications, notificationView{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Title:     n.Title,
			Body:      n.Body,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	if p.yaml {
		return p.encode(v)
	}

	if len(items) == 0 {
		fmt.Fprintln(p.w, p.dim.Render("no notifications"))
		return nil
	}
	for _, n := range items {
		mark := " "
		if !n.Read {
			mark = p.unread.Render("*")
		}
		fmt.Fprintf(p.w, "%s %s  %s  %s\n", mark, p.dim.Render(n.ID), p.dim.Render(n.CreatedAt.Local().Format("Jan 02 15:04")), p.title.Render(n.Title))
		if body := strings.TrimSpace(n.Body); body != "" {
			fmt.Fprintf(p.w, "  %s\n", body)
		}
	}
	fmt.Fprintf(p.w, "\n%d unread\n", unread)
	return nil
}

func (p *printer) result(msg, id string) error {
	if p.yaml {
		return p.encode(resultView{Result: msg, ID: id})
	}
	if id != "" {
		msg += " " + p.dim.Render(id)
	}
	fmt.Fprintln(p.w, msg)
	return nil
}
