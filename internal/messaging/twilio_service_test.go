package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/BTreeMap/CardDesk/internal/twiliowhatsapp"
)

func postWebhook(svc *TwilioService, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/twilio/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(twiliowhatsapp.SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	svc.WebhookHandler(rr, req)
	return rr
}

func TestTwilioService_Webhook(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient(), nil)
	rr := postWebhook(svc, url.Values{
		"From":       {"whatsapp:+919876543210"},
		"Body":       {"card declined"},
		"MessageSid": {"SM123"},
	}, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("expected text/xml, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<Response></Response>") {
		t.Errorf("expected empty TwiML, got %q", rr.Body.String())
	}
	select {
	case msg := <-svc.Inbound():
		if msg.ID != "SM123" || msg.From != "919876543210" || msg.Body != "card declined" || msg.Channel != models.ChannelTwilio {
			t.Errorf("unexpected inbound %+v", msg)
		}
	default:
		t.Fatal("expected inbound message")
	}
}

func TestTwilioService_WebhookMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient(), nil)
	rr := postWebhook(svc, url.Values{"From": {"whatsapp:+919876543210"}}, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestTwilioService_WebhookRejectsBadSignature(t *testing.T) {
	v := twiliowhatsapp.NewValidator("secret", "https://carddesk.example.com/twilio/whatsapp")
	svc := NewTwilioService(twiliowhatsapp.NewMockClient(), v)
	rr := postWebhook(svc, url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"hi"}}, "bogus")
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
	select {
	case msg := <-svc.Inbound():
		t.Errorf("rejected webhook must not be queued, got %+v", msg)
	default:
	}
}

func TestTwilioService_SendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock, nil)
	if err := svc.SendMessage(context.Background(), "whatsapp:+919876543210", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "919876543210" {
		t.Errorf("unexpected sent messages %+v", mock.SentMessages)
	}
}
