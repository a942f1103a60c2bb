package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, APIKey: "secret", UserAgent: "momrec/test"}, testLogger())
	require.NoError(t, err)
	return client
}

func wholeUpload(data []byte) Upload {
	return Upload{
		Path:  "/speech-to-text/transcribe",
		Query: url.Values{"export_format": {"none"}},
		Parts: []Part{{Field: "file", Filename: "recording.webm", ContentType: "audio/webm;codecs=opus", Data: data}},
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{}, testLogger())
	assert.Error(t, err)

	client, err := NewClient(Config{BaseURL: "http://localhost:8000"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "momrec", client.config.UserAgent)
	assert.Positive(t, client.config.Timeout)
}

func TestTranscribeSuccess(t *testing.T) {
	var gotQuery, gotAuth, gotAgent, gotRequestID string
	var gotFile []byte
	var gotContentType, gotFilename string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/speech-to-text/transcribe", r.URL.Path)
		gotQuery = r.URL.Query().Get("export_format")
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get("X-Request-ID")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		gotFilename = hdr.Filename
		gotContentType = hdr.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"transcript": "we agreed to ship friday",
			"mom": {
				"title": "Release sync",
				"summary": {"overview": "Ship plan", "detailed": "Everything is on track"},
				"attendees": ["Ana (PM)"],
				"tasks": [{"task": "Tag release", "assigned_to": "Ben", "deadline": "2024-05-03"}],
				"decisions": [{"decision": "Ship friday", "participant": "Ana"}]
			},
			"export_file": null
		}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.Transcribe(context.Background(), wholeUpload([]byte("audio-bytes")))
	require.NoError(t, err)

	assert.Equal(t, "none", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "momrec/test", gotAgent)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, []byte("audio-bytes"), gotFile)
	assert.Equal(t, "recording.webm", gotFilename)
	assert.Equal(t, "audio/webm;codecs=opus", gotContentType)

	assert.True(t, result.HasSpeech())
	mom := result.Minutes()
	assert.Equal(t, "Release sync", mom.Title)
	assert.Equal(t, "Ship plan", mom.Summary.Overview)
	assert.Equal(t, "Everything is on track", mom.Summary.Detailed)
	require.Len(t, mom.Tasks, 1)
	assert.Equal(t, "Tag release (assigned to: Ben, deadline: 2024-05-03)", EntryText(mom.Tasks[0]))
	assert.Equal(t, "Ana (PM)", EntryText(mom.Attendees[0]))
	assert.Empty(t, result.ExportFile)
	assert.Contains(t, string(result.Raw), "we agreed to ship friday")

	stats := client.GetStats()
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.SuccessRequests)
	assert.Equal(t, 0, stats.ActiveRequests)
}

func TestTranscribeMultipleParts(t *testing.T) {
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
		}
		io.WriteString(w, `{"transcript":"hi","mom":{"summary":"short"},"processing_info":{"total_files":3,"successful_files":3,"total_time":1.5}}`)
	}))
	defer srv.Close()

	upload := Upload{Path: "live-speech-to-text/live-chunks"}
	for _, name := range []string{"chunk_0000.webm", "chunk_0001.webm", "chunk_0002.webm"} {
		upload.Parts = append(upload.Parts, Part{Field: "files", Filename: name, Data: []byte(name)})
	}

	result, err := newTestClient(t, srv.URL+"/").Transcribe(context.Background(), upload)
	require.NoError(t, err)

	assert.Equal(t, []string{"chunk_0000.webm", "chunk_0001.webm", "chunk_0002.webm"}, names)
	assert.Equal(t, "short", result.Minutes().Summary.Overview)
	require.NotNil(t, result.ProcessingInfo)
	assert.Equal(t, 3, result.ProcessingInfo.SuccessfulFiles)
	assert.Equal(t, 1.5, result.ProcessingInfo.TotalTime)
}

func TestTranscribeHTTPErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{
			name:    "detail string",
			status:  http.StatusInternalServerError,
			body:    `{"detail":"model unavailable"}`,
			message: "model unavailable",
		},
		{
			name:    "validation array",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail":[{"loc":["body","file"],"msg":"Field required","type":"missing"},{"msg":"bad format"}]}`,
			message: "body.file: Field required; bad format",
		},
		{
			name:    "plain text body",
			status:  http.StatusBadGateway,
			body:    "  upstream timed out\n",
			message: "upstream timed out",
		},
		{
			name:    "empty body",
			status:  http.StatusServiceUnavailable,
			body:    "",
			message: "HTTP 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.Transcribe(context.Background(), wholeUpload([]byte("x")))
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.message, ErrorMessage(err))
			assert.Equal(t, 1, calls, "request must not be retried")
			assert.Equal(t, uint64(1), client.GetStats().FailedRequests)
		})
	}
}

func TestTranscribeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	_, err := newTestClient(t, baseURL).Transcribe(context.Background(), wholeUpload([]byte("x")))
	require.Error(t, err)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, MsgConnectivity, ErrorMessage(err))
}

func TestTranscribeDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>oops</html>")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Transcribe(context.Background(), wholeUpload([]byte("x")))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "<html>oops</html>", string(decodeErr.Body))
	assert.Equal(t, MsgInvalidResponse, ErrorMessage(err))
}

func TestTranscribeNoParts(t *testing.T) {
	_, err := newTestClient(t, "http://127.0.0.1:1").Transcribe(context.Background(), Upload{Path: "/x"})
	assert.Error(t, err)
}

func TestDiagnose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/live-speech-to-text/live-single", r.URL.Path)
		io.WriteString(w, `{"transcript":"testing","audio_info":{"duration":1.0,"sample_rate":16000,"samples":16000,"max_amplitude":0.42}}`)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL).Diagnose(context.Background(), Upload{
		Path:  "/live-speech-to-text/live-single",
		Parts: []Part{{Field: "file", Filename: "chunk_0000.wav", ContentType: "audio/wav", Data: []byte("RIFF")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "testing", result.Transcript)
	assert.Equal(t, 16000, result.AudioInfo.SampleRate)
	assert.InDelta(t, 0.42, result.AudioInfo.MaxAmplitude, 1e-9)
}

func TestEntryText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"Prepare budget"`, "Prepare budget"},
		{`{"decision":"Adopt Go","participant":"Team"}`, "Adopt Go (participant: Team)"},
		{`{"owner":"Kim","due":"Mon"}`, "due: Mon, owner: Kim"},
		{`42`, "42"},
		{``, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EntryText([]byte(tt.raw)), "raw %q", tt.raw)
	}
}

func TestTranscribeKeepsServiceShapes(t *testing.T) {
	tests := []struct {
		name  string
		mom   string
		check func(t *testing.T, mom MeetingRecord)
	}{
		{
			name: "string valued list",
			mom:  `{"title":"Sync","attendees":"Alice, Bob","decisions":null}`,
			check: func(t *testing.T, mom MeetingRecord) {
				require.Len(t, mom.Attendees, 1)
				assert.Equal(t, "Alice, Bob", EntryText(mom.Attendees[0]))
				assert.Empty(t, mom.Decisions)
			},
		},
		{
			name: "object overview",
			mom:  `{"overview":{"context":"quarterly review"},"title":["Q3","review"]}`,
			check: func(t *testing.T, mom MeetingRecord) {
				assert.Equal(t, "context: quarterly review", mom.Overview)
				assert.Equal(t, "Q3, review", mom.Title)
			},
		},
		{
			name: "summary without known keys",
			mom:  `{"summary":{"points":["a","b"]}}`,
			check: func(t *testing.T, mom MeetingRecord) {
				assert.Equal(t, "points: [a b]", mom.Summary.Overview)
			},
		},
		{
			name: "unknown keys",
			mom:  `{"error":"Parsing failed","raw":"LLM said hello","next_steps":["Book room"]}`,
			check: func(t *testing.T, mom MeetingRecord) {
				assert.Equal(t, "Parsing failed", ValueText(mom.Extra["error"]))
				assert.Equal(t, "LLM said hello", ValueText(mom.Extra["raw"]))
				assert.Equal(t, []string{"Book room"}, entryTexts(mom.Extra["next_steps"]))
			},
		},
		{
			name: "record is not an object",
			mom:  `"The meeting was short."`,
			check: func(t *testing.T, mom MeetingRecord) {
				assert.Equal(t, "The meeting was short.", mom.Overview)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"transcript":"hello there","mom":` + tt.mom + `,"export_file":{"path":"x"},"processing_info":"n/a"}`
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()

			result, err := newTestClient(t, srv.URL).Transcribe(context.Background(), wholeUpload([]byte("audio")))
			require.NoError(t, err)

			assert.True(t, result.HasSpeech())
			assert.Empty(t, result.ExportFile)
			assert.Nil(t, result.ProcessingInfo)
			assert.JSONEq(t, tt.mom, string(result.MoM))
			tt.check(t, result.Minutes())

			encoded, err := json.Marshal(result)
			require.NoError(t, err)
			assert.JSONEq(t, body, string(encoded))
		})
	}
}

func TestTranscribeRejectsNonStringTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"transcript":{"text":"hi"},"mom":{}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Transcribe(context.Background(), wholeUpload([]byte("audio")))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestResultMarshalWithoutRaw(t *testing.T) {
	r := Result{Transcript: "hi", MoM: json.RawMessage(`{"title":"T"}`)}

	encoded, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"transcript":"hi","mom":{"title":"T"}}`, string(encoded))
}

func entryTexts(raw json.RawMessage) []string {
	var out []string
	for _, e := range DecodeEntries(raw) {
		out = append(out, EntryText(e))
	}
	return out
}

func TestErrorMessagePassThrough(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
}
