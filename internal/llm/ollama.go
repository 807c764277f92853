package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultModel = "llama3.2"

// Message is one turn of a chat conversation in the provider's vocabulary
// (user/assistant/system roles).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client streams chat completions from an Ollama server. The response body is
// newline-delimited JSON chunks; the final chunk carries done=true.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func NewClient(host string, opts ...Option) *Client {
	baseURL := strings.TrimRight(host, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatChunk struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error"`
}

// StreamChat sends the conversation and invokes onDelta for every content
// fragment as it arrives. It returns the fully assembled reply. An error from
// onDelta aborts the stream.
func (c *Client) StreamChat(ctx context.Context, model string, messages []Message, onDelta func(string) error) (string, error) {
	if model == "" {
		model = DefaultModel
	}

	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var builder strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", fmt.Errorf("decode ollama stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama error: %s", chunk.Error)
		}

		if delta := chunk.Message.Content; delta != "" {
			builder.WriteString(delta)
			if onDelta != nil {
				if err := onDelta(delta); err != nil {
					return builder.String(), err
				}
			}
		}

		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return builder.String(), fmt.Errorf("read ollama stream: %w", err)
	}

	return builder.String(), nil
}
