// Package testutil provides common test utilities and helpers for CardDesk tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// ErrResponderUnavailable is returned by an unavailable FakeResponder.
var ErrResponderUnavailable = errors.New("responder unavailable")

// FakeResponder is a scripted language-model collaborator.
type FakeResponder struct {
	mu          sync.Mutex
	Reply       string
	Err         error
	Calls       int
	LastSystem  string
	LastUser    string
	HadDeadline bool
}

// NewFakeResponder returns a responder that always answers with reply.
func NewFakeResponder(reply string) *FakeResponder {
	return &FakeResponder{Reply: reply}
}

// NewFailingResponder returns a responder whose every call fails.
func NewFailingResponder() *FakeResponder {
	return &FakeResponder{Err: ErrResponderUnavailable}
}

// GenerateReply records the call and returns the scripted reply or error.
func (f *FakeResponder) GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastSystem = systemPrompt
	f.LastUser = userPrompt
	_, f.HadDeadline = ctx.Deadline()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// RecordingSender captures outbound channel messages.
type RecordingSender struct {
	mu   sync.Mutex
	Sent []SentMessage
	Err  error
}

// SentMessage is one captured outbound message.
type SentMessage struct {
	To   string
	Body string
}

// SendMessage records the message.
func (r *RecordingSender) SendMessage(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, SentMessage{To: to, Body: body})
	return nil
}

// Messages returns a copy of the captured messages.
func (r *RecordingSender) Messages() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMessage, len(r.Sent))
	copy(out, r.Sent)
	return out
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON envelope and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}
	return response
}

// DecodeChatResponse decodes the body of POST /handle_chat.
func DecodeChatResponse(t *testing.T, rr *httptest.ResponseRecorder) models.ChatResponse {
	t.Helper()
	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode chat response: %v", err)
	}
	return resp
}

// CreateFormRequest creates a form-encoded POST request.
func CreateFormRequest(t *testing.T, target string, values url.Values) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}
	req, err := http.NewRequest(method, target, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
