package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp     *openai.ChatCompletion
	err      error
	captured openai.ChatCompletionNewParams
	deadline bool
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.captured = params
	_, m.deadline = ctx.Deadline()
	return m.resp, m.err
}

func completion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerateReply_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("  Savings accounts earn interest quarterly.  ")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.3, maxTokens: 256, timeout: time.Second}
	out, err := client.GenerateReply(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Savings accounts earn interest quarterly." {
		t.Errorf("expected trimmed reply, got '%s'", out)
	}
	if string(mock.captured.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", mock.captured.Model)
	}
	if len(mock.captured.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.captured.Messages))
	}
	if mock.captured.Temperature.Value != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", mock.captured.Temperature.Value)
	}
	if mock.captured.MaxTokens.Value != 256 {
		t.Errorf("expected max tokens 256, got %v", mock.captured.MaxTokens.Value)
	}
	if !mock.deadline {
		t.Error("expected request context to carry a deadline")
	}
}

func TestGenerateReply_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GenerateReply(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateReply_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	_, err := client.GenerateReply(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerateReply_EmptyContent(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completion("   ")}}
	_, err := client.GenerateReply(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("expected empty reply error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("m"), WithTemperature(0.1), WithMaxTokens(64), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "m" || cli.temperature != 0.1 || cli.maxTokens != 64 || cli.timeout != 2*time.Second {
		t.Errorf("options not applied: %+v", cli)
	}
}

func TestNewClient_EnvFallback(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	cli, err := NewClient()
	if err != nil {
		t.Fatalf("expected GROQ_API_KEY fallback to work, got %v", err)
	}
	if cli.model != DefaultModel || cli.maxTokens != DefaultMaxTokens {
		t.Errorf("expected defaults, got model=%s maxTokens=%d", cli.model, cli.maxTokens)
	}
}
