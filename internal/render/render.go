package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/session"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
)

// DefaultWidth is used when the terminal width is unknown
const DefaultWidth = 80

// section is one titled list of the meeting record
type section struct {
	title   string
	entries []json.RawMessage
}

// Result renders the meeting record followed by the transcript
func Result(r *transcription.Result, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	body := lipgloss.NewStyle().Width(width - 4)

	var b strings.Builder
	mom := r.Minutes()

	title := mom.Title
	if title == "" {
		title = "Meeting minutes"
	}
	b.WriteString(styleTitle.Render(title))
	b.WriteString("\n")

	overview := mom.Summary.Overview
	if overview == "" {
		overview = mom.Overview
	}
	if overview != "" {
		b.WriteString(styleHeading.Render("Summary"))
		b.WriteString("\n")
		b.WriteString(body.Inherit(styleBody).Render(overview))
		b.WriteString("\n")
	}
	if d := mom.Summary.Detailed; d != "" && d != overview {
		b.WriteString("\n")
		b.WriteString(body.Inherit(styleBody).Render(d))
		b.WriteString("\n")
	}

	sections := []section{
		{"Attendees", mom.Attendees},
		{"Action items", mom.ActionItems},
		{"Tasks", mom.Tasks},
		{"Decisions", mom.Decisions},
		{"Risks", mom.Risks},
		{"Follow-ups", mom.FollowUps},
		{"Data points", mom.DataPoints},
	}
	for _, key := range extraKeys(mom.Extra) {
		sections = append(sections, section{heading(key), transcription.DecodeEntries(mom.Extra[key])})
	}
	for _, s := range sections {
		if len(s.entries) == 0 {
			continue
		}
		b.WriteString(styleHeading.Render(s.title))
		b.WriteString("\n")
		for _, e := range s.entries {
			text := transcription.EntryText(e)
			if text == "" {
				continue
			}
			b.WriteString(styleBullet.Render("  • "))
			b.WriteString(body.Inherit(styleBody).Render(text))
			b.WriteString("\n")
		}
	}

	if r.ExportFile != "" {
		b.WriteString(styleHeading.Render("Export"))
		b.WriteString("\n")
		b.WriteString(styleDim.Render(r.ExportFile))
		b.WriteString("\n")
	}

	if msg := transcription.ValueText(mom.Extra["error"]); msg != "" {
		b.WriteString(styleHint.Render("Service reported: " + msg))
		b.WriteString("\n")
	}
	if r.ProcessingInfo != nil && r.ProcessingInfo.Error != "" {
		b.WriteString(styleHint.Render("Service reported: " + r.ProcessingInfo.Error))
		b.WriteString("\n")
	}

	b.WriteString(styleHeading.Render("Transcript"))
	b.WriteString("\n")
	b.WriteString(stylePanel.Width(width - 2).Render(strings.TrimSpace(r.Transcript)))

	return b.String()
}

// extraKeys returns the record keys without a dedicated section, sorted.
// An error key is shown as a hint instead.
func extraKeys(extra map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k != "error" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// heading turns a record key such as "next_steps" into "Next steps"
func heading(key string) string {
	text := strings.ReplaceAll(key, "_", " ")
	if text == "" {
		return text
	}
	return strings.ToUpper(text[:1]) + text[1:]
}

// Status renders a one-line summary of the session
func Status(snap session.Snapshot) string {
	state := snap.State.String()
	parts := []string{stateStyle(state).Render("● " + state)}

	if snap.Device != "" {
		parts = append(parts, styleDim.Render(snap.Device))
	}
	if snap.Encoding != "" {
		parts = append(parts, styleDim.Render(snap.Encoding))
	}
	if n := len(snap.Chunks); n > 0 || snap.State == session.Recording {
		parts = append(parts, fmt.Sprintf("%d chunks", n), Bytes(snap.TotalBytes))
	}
	if snap.StartedAt != nil {
		parts = append(parts, Clock(snap.Duration()))
	}

	return strings.Join(parts, "  ")
}

// Chunks renders the chunk list as a table
func Chunks(infos []audio.ChunkInfo) string {
	if len(infos) == 0 {
		return styleDim.Render("no chunks")
	}

	var b strings.Builder
	b.WriteString(styleTableHeader.Render(fmt.Sprintf("%5s  %10s  %-12s  %s", "#", "size", "captured", "level")))
	b.WriteString("\n")

	for _, c := range infos {
		captured := time.UnixMilli(c.CapturedAtMillis).Format("15:04:05.000")
		fmt.Fprintf(&b, "%5d  %10s  %-12s  %s\n", c.SequenceIndex, Bytes(c.SizeBytes), captured, Meter(c.PeakAmplitude, 10))
	}

	return strings.TrimRight(b.String(), "\n")
}

// Diagnostic renders the answer of the single chunk endpoint
func Diagnostic(index int, d *transcription.DiagnosticResult) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(fmt.Sprintf("Chunk %d", index)))
	b.WriteString("\n")

	info := d.AudioInfo
	fmt.Fprintf(&b, "%s %.2fs at %d Hz, %d samples, peak %.3f %s\n",
		styleDim.Render("decoded"),
		info.Duration, info.SampleRate, info.Samples, info.MaxAmplitude,
		Meter(info.MaxAmplitude, 10))

	transcript := strings.TrimSpace(d.Transcript)
	if transcript == "" {
		b.WriteString(styleHint.Render("no speech recognised in this chunk"))
	} else {
		b.WriteString(styleBody.Render(transcript))
	}

	return b.String()
}

// Failure renders the message stored on a failed session
func Failure(snap session.Snapshot) string {
	if snap.State != session.Failed {
		return ""
	}
	msg := styleError.Render(snap.ErrorMessage)
	if snap.Failure != session.FailureNone {
		msg += " " + styleDim.Render("("+string(snap.Failure)+")")
	}
	return msg
}

// Error renders an error for the terminal
func Error(err error) string {
	if err == nil {
		return ""
	}

	text := err.Error()
	var hint string
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		hint = session.MsgPermissionDenied
	case errors.Is(err, session.ErrDeviceUnavailable):
		hint = session.MsgDeviceUnavailable
	case errors.Is(err, session.ErrConnectivity):
		hint = transcription.MsgConnectivity
	}

	out := styleError.Render("Error: ") + text
	if hint != "" {
		out += "\n" + styleHint.Render(hint)
	}
	return out
}

// Info renders a dimmed informational line
func Info(format string, args ...interface{}) string {
	return styleDim.Render(fmt.Sprintf(format, args...))
}

// Meter renders an amplitude in [0, 1] as a bar of the given width
func Meter(peak float64, width int) string {
	if peak < 0 {
		peak = 0
	}
	if peak > 1 {
		peak = 1
	}
	filled := int(peak*float64(width) + 0.5)
	return strings.Repeat("█", filled) + styleDim.Render(strings.Repeat("░", width-filled))
}

// Bytes formats a byte count with a binary unit
func Bytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

// Clock formats a duration as mm:ss, or h:mm:ss past the hour
func Clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
