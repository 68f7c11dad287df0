package main

import (
	"testing"

	"github.com/quailyquaily/relaydesk/internal/telegram"
)

func TestInboundFromUpdate(t *testing.T) {
	operators := []int64{10}

	msg := func(chatID, fromID int64, text string) *telegram.Message {
		return &telegram.Message{
			MessageID: 7,
			Chat:      &telegram.Chat{ID: chatID, Type: "private"},
			From:      &telegram.User{ID: fromID, FirstName: "Alice", Username: "alice"},
			Text:      text,
		}
	}

	t.Run("user message", func(t *testing.T) {
		in, ok := inboundFromUpdate(telegram.Update{UpdateID: 1, Message: msg(555, 555, "hello")}, operators)
		if !ok {
			t.Fatal("update dropped")
		}
		if in.ChatID != 555 || in.SenderID != 555 || in.Text != "hello" || in.IsOperator {
			t.Errorf("unexpected inbound: %+v", in)
		}
		if in.CorrelationID == "" {
			t.Error("no correlation id assigned")
		}
		if in.DisplayName != "Alice" || in.Username != "alice" {
			t.Errorf("sender identity: %+v", in)
		}
	})

	t.Run("operator flag", func(t *testing.T) {
		in, ok := inboundFromUpdate(telegram.Update{UpdateID: 2, Message: msg(10, 10, "/reply 555 hi")}, operators)
		if !ok || !in.IsOperator {
			t.Errorf("operator not recognized: ok=%v in=%+v", ok, in)
		}
	})

	t.Run("reply-to text carried", func(t *testing.T) {
		m := msg(10, 10, "sure")
		m.ReplyTo = &telegram.Message{Text: "From: Alice @alice\nID: 555"}
		in, ok := inboundFromUpdate(telegram.Update{UpdateID: 3, Message: m}, operators)
		if !ok || in.ReplyToText != "From: Alice @alice\nID: 555" {
			t.Errorf("reply-to lost: ok=%v in=%+v", ok, in)
		}
	})

	t.Run("media without text kept", func(t *testing.T) {
		m := msg(555, 555, "")
		m.Photo = []telegram.PhotoSize{{FileID: "p1"}}
		m.Caption = "look"
		in, ok := inboundFromUpdate(telegram.Update{UpdateID: 4, Message: m}, operators)
		if !ok || !in.HasMedia || in.Text != "look" {
			t.Errorf("media message: ok=%v in=%+v", ok, in)
		}
	})

	t.Run("bot sender dropped", func(t *testing.T) {
		m := msg(555, 999, "beep")
		m.From.IsBot = true
		if _, ok := inboundFromUpdate(telegram.Update{UpdateID: 5, Message: m}, operators); ok {
			t.Error("bot message not dropped")
		}
	})

	t.Run("empty service update dropped", func(t *testing.T) {
		m := msg(555, 555, "")
		if _, ok := inboundFromUpdate(telegram.Update{UpdateID: 6, Message: m}, operators); ok {
			t.Error("payload-less message not dropped")
		}
		if _, ok := inboundFromUpdate(telegram.Update{UpdateID: 7}, operators); ok {
			t.Error("message-less update not dropped")
		}
	})
}
