package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSignsPayload(t *testing.T) {
	secret := "s3cret"
	var gotSig string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &Notification{
		Kind:       "consensus",
		Title:      "Consensus on repo_rate_7d",
		Label:      "▲ 64% UP",
		Direction:  "bullish",
		Indicator:  "repo_rate_7d",
		BullishPct: 64,
		Signals:    3,
	}

	wh := NewWebhook(srv.URL, secret)
	if err := wh.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature mismatch: got %q want %q", gotSig, want)
	}

	var decoded Notification
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Label != n.Label || decoded.Indicator != n.Indicator {
		t.Fatalf("payload mangled: %+v", decoded)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	if err := wh.Send(context.Background(), &Notification{Kind: "hot_topic", Title: "t"}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestManagerBroadcastCollectsErrors(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	m := NewManager([]Notifier{NewWebhook(ok.URL, ""), NewWebhook(bad.URL, "")})
	err := m.Broadcast(context.Background(), &Notification{Kind: "hot_topic", Title: "t"})
	if err == nil {
		t.Fatal("expected joined error from failing notifier")
	}
}

func TestManagerHasNotifiers(t *testing.T) {
	if NewManager(nil).HasNotifiers() {
		t.Fatal("empty manager claims notifiers")
	}
	if !NewManager([]Notifier{NewWebhook("http://example.invalid", "")}).HasNotifiers() {
		t.Fatal("manager with notifier reports none")
	}
}
