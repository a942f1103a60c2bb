package transcription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Result is the decoded response of a transcription request. The meeting
// record belongs to the service and is kept exactly as received in MoM;
// Minutes gives a typed view of it. Raw holds the whole body and is what the
// result marshals back to, so nothing the service sent is lost.
type Result struct {
	Transcript     string          `json:"transcript"`
	MoM            json.RawMessage `json:"mom,omitempty"`
	ExportFile     string          `json:"export_file,omitempty"`
	ProcessingInfo *ProcessingInfo `json:"processing_info,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a response body. Only a transcript that is not a
// string is an error; the other fields are informational and are skipped
// when their shape is unexpected.
func (r *Result) UnmarshalJSON(data []byte) error {
	var wire struct {
		Transcript     json.RawMessage `json:"transcript"`
		MoM            json.RawMessage `json:"mom"`
		ExportFile     json.RawMessage `json:"export_file"`
		ProcessingInfo json.RawMessage `json:"processing_info"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var transcript string
	if !isNull(wire.Transcript) {
		if err := json.Unmarshal(wire.Transcript, &transcript); err != nil {
			return fmt.Errorf("transcript: %w", err)
		}
	}

	*r = Result{
		Transcript: transcript,
		Raw:        append(json.RawMessage(nil), data...),
	}
	if !isNull(wire.MoM) {
		r.MoM = wire.MoM
	}
	if !isNull(wire.ExportFile) {
		json.Unmarshal(wire.ExportFile, &r.ExportFile)
	}
	if !isNull(wire.ProcessingInfo) {
		var info ProcessingInfo
		if err := json.Unmarshal(wire.ProcessingInfo, &info); err == nil {
			r.ProcessingInfo = &info
		}
	}
	return nil
}

// MarshalJSON returns the body as the service sent it when there is one
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 && json.Valid(r.Raw) {
		return r.Raw, nil
	}
	type plain Result
	return json.Marshal(plain(r))
}

// HasSpeech reports whether the transcript contains anything but whitespace
func (r *Result) HasSpeech() bool {
	return strings.TrimSpace(r.Transcript) != ""
}

// Minutes returns the typed view of the meeting record
func (r *Result) Minutes() MeetingRecord {
	return DecodeMeetingRecord(r.MoM)
}

// MeetingRecord is a typed view of the minutes produced by the service.
// List entries are either plain strings or small objects, so they are kept
// raw. Keys the view does not know are collected in Extra.
type MeetingRecord struct {
	Title       string
	Summary     Summary
	Overview    string
	Attendees   []json.RawMessage
	Tasks       []json.RawMessage
	ActionItems []json.RawMessage
	Decisions   []json.RawMessage
	Risks       []json.RawMessage
	DataPoints  []json.RawMessage
	FollowUps   []json.RawMessage
	Extra       map[string]json.RawMessage
}

// DecodeMeetingRecord builds the typed view field by field. A field with an
// unexpected shape is rendered as text or kept as a single entry; decoding
// never fails.
func DecodeMeetingRecord(raw json.RawMessage) MeetingRecord {
	var rec MeetingRecord
	if isNull(raw) {
		return rec
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		rec.Overview = ValueText(raw)
		return rec
	}

	lists := map[string]*[]json.RawMessage{
		"attendees":    &rec.Attendees,
		"tasks":        &rec.Tasks,
		"action_items": &rec.ActionItems,
		"decisions":    &rec.Decisions,
		"risks":        &rec.Risks,
		"data_points":  &rec.DataPoints,
		"follow_ups":   &rec.FollowUps,
	}

	for key, value := range fields {
		if list, ok := lists[key]; ok {
			*list = DecodeEntries(value)
			continue
		}

		switch key {
		case "title":
			rec.Title = ValueText(value)
		case "overview":
			rec.Overview = ValueText(value)
		case "summary":
			rec.Summary = decodeSummary(value)
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]json.RawMessage)
			}
			rec.Extra[key] = value
		}
	}
	return rec
}

// Summary is sent either as {"overview", "detailed"} or as a bare value,
// which is treated as the overview
type Summary struct {
	Overview string
	Detailed string
}

func decodeSummary(raw json.RawMessage) Summary {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Summary{Overview: ValueText(raw)}
	}

	_, hasOverview := fields["overview"]
	_, hasDetailed := fields["detailed"]
	if !hasOverview && !hasDetailed {
		return Summary{Overview: ValueText(raw)}
	}
	return Summary{Overview: ValueText(fields["overview"]), Detailed: ValueText(fields["detailed"])}
}

// DecodeEntries returns the elements of a list field. Anything but an
// array is kept as one entry.
func DecodeEntries(raw json.RawMessage) []json.RawMessage {
	if isNull(raw) {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	if ValueText(raw) == "" {
		return nil
	}
	return []json.RawMessage{raw}
}

// ValueText renders any field value as a single line. Arrays are joined
// with ", ", everything else goes through EntryText.
func ValueText(raw json.RawMessage) string {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, e := range list {
			if text := EntryText(e); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	}
	return EntryText(raw)
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// ProcessingInfo carries the per-chunk pipeline counters returned by the
// chunked endpoint
type ProcessingInfo struct {
	TotalFiles        int             `json:"total_files"`
	ProcessedFiles    int             `json:"processed_files"`
	SuccessfulFiles   int             `json:"successful_files"`
	AudioChunks       int             `json:"audio_chunks"`
	ProcessingTime    float64         `json:"processing_time"`
	TranscriptionTime float64         `json:"transcription_time"`
	TotalTime         float64         `json:"total_time"`
	Error             string          `json:"error,omitempty"`
	FileDetails       json.RawMessage `json:"file_details,omitempty"`
}

// DiagnosticResult is the response of the single chunk endpoint
type DiagnosticResult struct {
	Transcript string    `json:"transcript"`
	AudioInfo  AudioInfo `json:"audio_info"`
}

// AudioInfo describes the audio the service decoded from a chunk
type AudioInfo struct {
	Duration     float64 `json:"duration"`
	SampleRate   int     `json:"sample_rate"`
	Samples      int     `json:"samples"`
	MaxAmplitude float64 `json:"max_amplitude"`
}

// EntryText renders one list entry as a single line. Strings are returned
// as is; objects become "value (key: value, ...)" using the first of the
// known headline keys as the leading value.
func EntryText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return string(raw)
	}

	headline := ""
	for _, key := range []string{"task", "decision", "item", "name", "description", "text"} {
		if v, ok := obj[key]; ok {
			headline = fmt.Sprint(v)
			delete(obj, key)
			break
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]string, 0, len(keys))
	for _, k := range keys {
		details = append(details, fmt.Sprintf("%s: %v", strings.ReplaceAll(k, "_", " "), obj[k]))
	}

	switch {
	case headline == "":
		return strings.Join(details, ", ")
	case len(details) == 0:
		return headline
	default:
		return fmt.Sprintf("%s (%s)", headline, strings.Join(details, ", "))
	}
}
