package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/loomwork/transcribe-core/domain/store"
)

// Client is an HTTP client for a whisper-ASR-style transcription service,
// adapted from the teacher's plaintext-only whisper client to request
// "output=json" and parse segment timestamps and detected language.
type Client struct {
	httpClient *http.Client
	baseURL    string
	modelSize  string
	timeout    time.Duration
}

// NewClient builds a Client pointed at the transcription service's base URL.
func NewClient(baseURL, modelSize string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		modelSize:  modelSize,
		timeout:    timeout,
	}
}

type asrSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type asrResponse struct {
	Text     string       `json:"text"`
	Segments []asrSegment `json:"segments"`
	Language string       `json:"language"`
}

// Transcribe posts audio bytes as multipart/form-data to POST
// /asr?output=json&task=transcribe and parses the segmented JSON response.
func (c *Client) Transcribe(ctx context.Context, data []byte, filePath string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio_file", filepath.Base(filePath))
	if err != nil {
		return nil, &TranscribeError{Kind: ErrorKindDecodeError, Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &TranscribeError{Kind: ErrorKindDecodeError, Err: fmt.Errorf("write audio content: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &TranscribeError{Kind: ErrorKindDecodeError, Err: fmt.Errorf("close multipart writer: %w", err)}
	}

	endpoint, err := url.Parse(c.baseURL + "/asr")
	if err != nil {
		return nil, &TranscribeError{Kind: ErrorKindModelError, Err: fmt.Errorf("parse service url: %w", err)}
	}
	q := endpoint.Query()
	q.Set("output", "json")
	q.Set("task", "transcribe")
	if c.modelSize != "" {
		q.Set("model_size", c.modelSize)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &buf)
	if err != nil {
		return nil, &TranscribeError{Kind: ErrorKindModelError, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TranscribeError{Kind: ErrorKindModelError, Err: fmt.Errorf("transcription service unavailable: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TranscribeError{Kind: ErrorKindDecodeError, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 400 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > 200 {
			excerpt = excerpt[:200] + "..."
		}
		return nil, &TranscribeError{Kind: ErrorKindModelError, Err: fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, excerpt)}
	}

	var parsed asrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &TranscribeError{Kind: ErrorKindDecodeError, Err: fmt.Errorf("decode response: %w", err)}
	}

	segments := make([]store.Segment, len(parsed.Segments))
	for i, s := range parsed.Segments {
		segments[i] = store.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}

	return &Result{
		Transcript: strings.TrimSpace(parsed.Text),
		Segments:   segments,
		Language:   parsed.Language,
	}, nil
}
