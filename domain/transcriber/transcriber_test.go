package transcriber

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranscriber(baseURL string) *whisperTranscriber {
	return &whisperTranscriber{
		client: NewClient(baseURL, "base", time.Second),
		log:    slog.Default(),
	}
}

func writeTempAudio(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestWhisperTranscriber_Transcribe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"text": "hello world",
			"segments": [{"start": 0, "end": 1.5, "text": "hello world"}],
			"language": "en"
		}`))
	}))
	defer srv.Close()

	path := writeTempAudio(t, "fake-audio-bytes")
	tr := newTestTranscriber(srv.URL)

	result, err := tr.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Transcript)
	assert.Equal(t, "en", result.Language)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, 0.0, result.Segments[0].Start)
	assert.Equal(t, 1.5, result.Segments[0].End)
}

func TestWhisperTranscriber_Transcribe_FileMissingIsPermanent(t *testing.T) {
	tr := newTestTranscriber("http://unused")

	_, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.wav"))
	require.Error(t, err)

	var tErr *TranscribeError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, ErrorKindFileMissing, tErr.Kind)
	assert.True(t, tErr.Permanent())
}

func TestWhisperTranscriber_Transcribe_EmptyFileIsPermanent(t *testing.T) {
	path := writeTempAudio(t, "")
	tr := newTestTranscriber("http://unused")

	_, err := tr.Transcribe(context.Background(), path)
	require.Error(t, err)

	var tErr *TranscribeError
	require.ErrorAs(t, err, &tErr)
	assert.True(t, tErr.Permanent())
}

func TestWhisperTranscriber_Transcribe_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model crashed"))
	}))
	defer srv.Close()

	path := writeTempAudio(t, "fake-audio-bytes")
	tr := newTestTranscriber(srv.URL)

	_, err := tr.Transcribe(context.Background(), path)
	require.Error(t, err)

	var tErr *TranscribeError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, ErrorKindModelError, tErr.Kind)
	assert.False(t, tErr.Permanent())
}
