// Package render prints command results as text, YAML or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"

	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/pkg/player"
)

type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatYAML, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q, want text, yaml or json", s)
	}
}

type Printer struct {
	w      io.Writer
	format Format
}

func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Sessions prints a session list in the given order.
func (p *Printer) Sessions(sessions []course.Session) error {
	if p.format != FormatText {
		return p.structured(sessions)
	}

	if len(sessions) == 0 {
		_, err := fmt.Fprintln(p.w, "No sessions.")
		return err
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tVIDEOS\tDESCRIPTION")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Title, len(s.Videos), deref(s.Description))
	}
	return tw.Flush()
}

// Session prints one session with its videos.
func (p *Printer) Session(s course.Session) error {
	if p.format != FormatText {
		return p.structured(s)
	}

	fmt.Fprintf(p.w, "%s  %s\n", s.ID, s.Title)
	if d := deref(s.Description); d != "" {
		fmt.Fprintf(p.w, "  %s\n", d)
	}
	if len(s.Videos) == 0 {
		_, err := fmt.Fprintln(p.w, "  (no videos)")
		return err
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tID\tTITLE\tLENGTH\tURL")
	for i, v := range s.Videos {
		length := "-"
		if v.Duration != nil {
			length = player.FormatTime(*v.Duration)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", i+1, v.ID, v.Title, length, v.URL)
	}
	return tw.Flush()
}

// User prints the current identity, or a hint when logged out.
func (p *Printer) User(u *course.User) error {
	if p.format != FormatText {
		return p.structured(u)
	}
	if u == nil {
		_, err := fmt.Fprintln(p.w, "Not logged in.")
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s <%s> (%s)\n", u.Name, u.Email, u.Role)
	return err
}

// Message prints a plain confirmation.
func (p *Printer) Message(msg string) error {
	if p.format != FormatText {
		return p.structured(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

func (p *Printer) structured(v any) error {
	switch p.format {
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling yaml: %w", err)
		}
		_, err = p.w.Write(data)
		return err
	default:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
