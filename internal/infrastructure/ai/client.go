// Package ai implements the translation client boundary: an OpenAI-style
// chat-completions HTTP client that turns a natural-language query into a
// single shell command.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/ports"
)

const systemPrompt = "You are a helpful assistant that provides shell commands based on a user's " +
	"natural language prompt. Only provide the shell command itself, with no additional " +
	"explanation, formatting, or markdown code blocks. Do not wrap the command in " +
	"backticks, code fences, or any other formatting. Return only the raw command text. " +
	"For any parameters that require user input, enclose them in angle brackets, " +
	"like so: <parameter_name>."

// Client posts chat-completion requests to the configured endpoint.
type Client struct {
	settings   domain.APISettings
	httpClient *http.Client
}

// NewClient builds a translation client from the API settings. The request
// timeout is enforced by the caller's context.
func NewClient(settings domain.APISettings) *Client {
	return &Client{
		settings:   settings,
		httpClient: &http.Client{},
	}
}

func (c *Client) Name() string {
	return c.settings.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Translate implements ports.Translator.
func (c *Client) Translate(ctx context.Context, query string) (string, error) {
	key := os.Getenv(c.settings.AuthEnvVar)
	if key == "" {
		return "", fmt.Errorf("translation: %s is not set", c.settings.AuthEnvVar)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.settings.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("OS: %s, shell: %s. %s", runtime.GOOS, hostShell(), query)},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()

	var responseBody bytes.Buffer
	if _, err := responseBody.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("translation: %s", resp.Status)
	}

	var parsed chatResponse
	if err := json.Unmarshal(responseBody.Bytes(), &parsed); err != nil {
		return "", fmt.Errorf("translation response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("translation: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("translation: empty response")
	}

	command := cleanCommand(parsed.Choices[0].Message.Content)
	if command == "" {
		return "", fmt.Errorf("translation: no command in response")
	}
	return command, nil
}

// cleanCommand strips markdown fences and surrounding whitespace that some
// models still emit despite the prompt.
func cleanCommand(raw string) string {
	command := strings.TrimSpace(raw)
	if strings.HasPrefix(command, "```") {
		command = strings.TrimPrefix(command, "```")
		if idx := strings.Index(command, "\n"); idx >= 0 && !strings.ContainsAny(command[:idx], " \t") {
			command = command[idx+1:]
		}
		command = strings.TrimSuffix(strings.TrimSpace(command), "```")
	}
	command = strings.Trim(strings.TrimSpace(command), "`")
	if idx := strings.Index(command, "\n"); idx >= 0 {
		command = command[:idx]
	}
	return strings.TrimSpace(command)
}

func hostShell() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		return "unknown"
	}
	parts := strings.Split(shell, "/")
	return parts[len(parts)-1]
}

var _ ports.Translator = (*Client)(nil)
