package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markis/gh-transcript/internal/stream"
	"github.com/markis/gh-transcript/internal/transcript"
)

// Constants
const (
	APIBase   = "https://api.githubcopilot.com"
	GitHubAPI = "https://api.github.com"
)

// AuthorizationResponse represents the structure of the response from the GitHub API for authorization.
type AuthorizationResponse struct {
	Token string `json:"token"`
}

type Message map[string]any

// Request describes one chat turn.
type Request struct {
	Prompt string
	Model  string
	// Stop truncates the answer at the first occurrence of any of these literals.
	Stop []string
	// Snapshots means the backend streams cumulative text instead of deltas.
	Snapshots bool
}

// Result is what a finished turn produced.
type Result struct {
	// Raw is the model output after stop-sequence truncation, control blocks included.
	Raw string
	// Rendered is the text shown while streaming.
	Rendered string
	// Transcript is the text kept for the turn.
	Transcript string
	// Promoted is set when Transcript replaced the streamed text.
	Promoted bool
}

// Renderer displays a filtered chunk stream.
type Renderer interface {
	Render(chunks <-chan stream.Chunk) error
	Text() string
	RenderFinal(text string) error
}

// defaultHeaders returns the default headers for the API requests.
func defaultHeaders() map[string]string {
	return map[string]string{
		"Editor-Version":         "vscode/1.100.2",
		"Copilot-Integration-Id": "vscode-chat",
	}
}

// getHeaders retrieves the authorization headers required for the API requests.
func getHeaders(ctx context.Context, logger *zap.Logger) (map[string]string, error) {
	token, err := githubToken(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub token: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GitHubAPI+"/copilot_internal/v2/token", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	headers := defaultHeaders()
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Token "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer closeBody(resp.Body, logger)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status code: %d", resp.StatusCode)
	}

	auth := AuthorizationResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if auth.Token == "" {
		return nil, errors.New("received empty token in response")
	}

	headers["Authorization"] = "Bearer " + auth.Token
	return headers, nil
}

func closeBody(body io.Closer, logger *zap.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn("failed to close response body", zap.Error(err))
	}
}

// prepareInput prepares chat input for Copilot API
func prepareInput(prompt, modelID string) map[string]any {
	isOpenAIModel := strings.HasPrefix(modelID, "o1")

	messages := []Message{
		{"role": "user", "content": prompt},
	}

	payload := make(map[string]any, 5)
	payload["messages"] = messages
	payload["model"] = modelID

	// Add non-OpenAI specific parameters
	if !isOpenAIModel {
		payload["n"] = 1
		payload["top_p"] = 1
		payload["stream"] = true
	}

	return payload
}

// getHTTPClient returns a singleton HTTP client for streaming requests.
// It sets no Client.Timeout, since that would also cut off a long answer
// while its body is being read; the request context bounds the stream.
var (
	httpClient            *http.Client
	httpClientOnce        sync.Once
	responseHeaderTimeout = 60 * time.Second
)

func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		httpClient = &http.Client{Transport: newStreamingTransport(responseHeaderTimeout)}
	})
	return httpClient
}

func newStreamingTransport(headerTimeout time.Duration) *http.Transport {
	transport := &http.Transport{
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		DisableCompression:    false,
		DisableKeepAlives:     false,
		ForceAttemptHTTP2:     true,
	}

	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return transport
}

// Ask sends one prompt, streams the visible answer to renderer and returns the
// finalized turn.
func Ask(ctx context.Context, r Request, renderer Renderer, finalizer transcript.Finalizer, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	headers, err := getHeaders(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get headers: %w", err)
	}

	payload := prepareInput(r.Prompt, r.Model)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, APIBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer closeBody(resp.Body, logger)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return processStream(ctx, resp.Body, r, renderer, finalizer, logger)
}

// processStream drives one turn: parse, filter, render, then finalize.
func processStream(ctx context.Context, body io.ReadCloser, r Request, renderer Renderer, finalizer transcript.Finalizer, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parser := stream.NewParser(ctx,
		stream.WithStopSequences(r.Stop),
		stream.WithSnapshots(r.Snapshots),
		stream.WithLogger(logger),
	)
	go parser.Process(body)

	if err := renderer.Render(stream.Filter(ctx, parser.Chunks())); err != nil {
		return nil, fmt.Errorf("error reading response stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Raw:      parser.Raw(),
		Rendered: transcript.Sanitize(renderer.Text()),
	}
	result.Transcript = finalizer.FinalizedVisibleText(result.Raw, result.Rendered)
	result.Promoted = result.Transcript != result.Rendered

	if result.Promoted {
		logger.Debug("transcript differs from streamed text", zap.Int("transcript_len", len(result.Transcript)))
		if err := renderer.RenderFinal(result.Transcript); err != nil {
			return nil, err
		}
	}
	return result, nil
}
