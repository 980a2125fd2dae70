package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

type fakeChatModel struct {
	errs     []error
	content  string
	calls    int
	messages []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.messages = input
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.content}, nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func noSleep(c *ChatModelCompleter) *[]time.Duration {
	var slept []time.Duration
	c.retry.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestChatModelCompleter_Complete(t *testing.T) {
	cm := &fakeChatModel{content: "  market looks crowded \n"}
	c := NewChatModelCompleter(cm, "analyst", nil)

	got, err := c.Complete(context.Background(), "analyze B0C1234567")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "market looks crowded" {
		t.Errorf("Complete() = %q", got)
	}
	if len(cm.messages) != 2 || cm.messages[0].Role != schema.System || cm.messages[1].Content != "analyze B0C1234567" {
		t.Errorf("messages = %+v", cm.messages)
	}
}

func TestChatModelCompleter_RetriesOnRateLimit(t *testing.T) {
	cm := &fakeChatModel{
		errs:    []error{errors.New("status 429"), errors.New("Too Many Requests")},
		content: "ok",
	}
	c := NewChatModelCompleter(cm, "", nil)
	slept := noSleep(c)

	got, err := c.Complete(context.Background(), "p")
	if err != nil || got != "ok" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}
	if cm.calls != 3 {
		t.Errorf("calls = %d, want 3", cm.calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if fmt.Sprint(*slept) != fmt.Sprint(want) {
		t.Errorf("backoff = %v, want %v", *slept, want)
	}
	if len(cm.messages) != 1 {
		t.Errorf("system message sent without system prompt")
	}
}

func TestChatModelCompleter_GivesUpAfterRetries(t *testing.T) {
	cm := &fakeChatModel{errs: []error{
		errors.New("429"), errors.New("429"), errors.New("429"), errors.New("429 final"),
	}}
	c := NewChatModelCompleter(cm, "", nil)
	noSleep(c)

	_, err := c.Complete(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "429 final") {
		t.Errorf("Complete() error = %v", err)
	}
	if cm.calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", cm.calls, maxRetries+1)
	}
}

func TestChatModelCompleter_NonRetryableError(t *testing.T) {
	cm := &fakeChatModel{errs: []error{errors.New("invalid api key")}}
	c := NewChatModelCompleter(cm, "", nil)

	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Fatal("Complete() error = nil")
	}
	if cm.calls != 1 {
		t.Errorf("calls = %d, want 1", cm.calls)
	}
}

func TestChatModelCompleter_EmptyResponse(t *testing.T) {
	c := NewChatModelCompleter(&fakeChatModel{content: "   "}, "", nil)
	if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Complete() error = %v, want ErrEmptyResponse", err)
	}
}

func TestAnthropicCompleter_Complete(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Title: "}, {"type": "text", "text": "Wireless Earbuds"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	c := NewAnthropicCompleter(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		System:  "analyst",
	}, nil, option.WithMaxRetries(0))

	got, err := c.Complete(context.Background(), "describe B0C1234567")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Title: Wireless Earbuds" {
		t.Errorf("Complete() = %q", got)
	}
	if !strings.Contains(body, "describe B0C1234567") || !strings.Contains(body, "analyst") {
		t.Errorf("request body = %s", body)
	}
}

func TestNewLimiter(t *testing.T) {
	if l := NewLimiter(0, 0); l.Limit() != rate.Inf {
		t.Errorf("NewLimiter(0) limit = %v, want Inf", l.Limit())
	}
	l := NewLimiter(120, 0)
	if l.Limit() != 2 || l.Burst() != 1 {
		t.Errorf("NewLimiter(120, 0) = %v/%d", l.Limit(), l.Burst())
	}
}
