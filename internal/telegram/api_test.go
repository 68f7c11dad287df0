package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendTextPostsPlainMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	if err := api.SendText(context.Background(), 1001, "hello _user_ *42*"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if got.ChatID != 1001 {
		t.Fatalf("chat_id = %d, want 1001", got.ChatID)
	}
	if got.Text != "hello _user_ *42*" {
		t.Fatalf("text = %q, want verbatim input", got.Text)
	}
}

func TestSendTextChunksLongText(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req sendMessageRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		texts = append(texts, req.Text)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	long := strings.Repeat("a", 4000)
	if err := api.SendText(context.Background(), 1, long); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(texts))
	}
	if len(texts[0]) != 3500 || len(texts[1]) != 500 {
		t.Fatalf("chunk lengths = %d, %d, want 3500, 500", len(texts[0]), len(texts[1]))
	}
}

func TestSendTextReportsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	err := api.SendText(context.Background(), 55, "hi")
	if err == nil {
		t.Fatalf("SendText() error = nil, want request error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError", err)
	}
	if reqErr.ErrorCode != 403 {
		t.Fatalf("error_code = %d, want 403", reqErr.ErrorCode)
	}
	if !strings.Contains(reqErr.Error(), "blocked") {
		t.Fatalf("Error() = %q, want description included", reqErr.Error())
	}
}

func TestCopyMessagePostsIDs(t *testing.T) {
	var got copyMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/copyMessage") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":99}}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	if err := api.CopyMessage(context.Background(), 2001, 1001, 7); err != nil {
		t.Fatalf("CopyMessage() error = %v", err)
	}
	if got.ChatID != 2001 || got.FromChatID != 1001 || got.MessageID != 7 {
		t.Fatalf("copyMessage request = %+v, want {2001 1001 7}", got)
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":5,"type":"private"},"text":"a"}},
			{"update_id":12,"message":{"message_id":2,"chat":{"id":5,"type":"private"},"text":"b"}}
		]}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	updates, next, err := api.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("len(updates) = %d, want 2", len(updates))
	}
	if next != 13 {
		t.Fatalf("next offset = %d, want 13", next)
	}
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"username":"relaydesk_bot"}}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	me, err := api.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error = %v", err)
	}
	if me.ID != 42 || me.Username != "relaydesk_bot" {
		t.Fatalf("GetMe() = %+v, want id 42 username relaydesk_bot", me)
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user *User
		want string
	}{
		{"nil", nil, ""},
		{"first and last", &User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", &User{FirstName: "Ada"}, "Ada"},
		{"username fallback", &User{Username: "ada"}, "@ada"},
		{"empty", &User{}, ""},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.user); got != tc.want {
			t.Fatalf("DisplayName(%s) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestHasMediaAndTextOrCaption(t *testing.T) {
	msg := &Message{Caption: "look", Photo: []PhotoSize{{FileID: "f"}}}
	if !msg.HasMedia() {
		t.Fatalf("HasMedia() = false, want true for photo")
	}
	if got := msg.TextOrCaption(); got != "look" {
		t.Fatalf("TextOrCaption() = %q, want caption", got)
	}
	plain := &Message{Text: "hi"}
	if plain.HasMedia() {
		t.Fatalf("HasMedia() = true for plain text")
	}
}
