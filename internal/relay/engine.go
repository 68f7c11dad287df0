// Package relay routes inbound messages between anonymous end-users and the
// configured operators. End-user messages fan out to every operator with a
// parseable identity label; operator messages are routed back by explicit
// /reply addressing, by reply-to-label threading, or through the /send
// compose workflow. Every per-message failure becomes a reply to the sender;
// nothing here ever aborts processing of an unrelated message.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/relaydesk/internal/label"
	"github.com/quailyquaily/relaydesk/internal/replytext"
	"github.com/quailyquaily/relaydesk/internal/session"
)

// Transport is the outbound surface of the chat backend.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// CopyMessage duplicates a message into another chat, preserving the
	// original media type.
	CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error
}

// Sessions is the per-operator compose workflow store.
type Sessions interface {
	Stage(operatorID int64) session.Stage
	Begin(operatorID int64)
	Reset(operatorID int64)
	SubmitTarget(operatorID int64, text string) (int64, error)
	TakeTarget(operatorID int64) (int64, error)
}

// Conversations tracks which end-user conversations are open.
type Conversations interface {
	MarkOpen(userID int64)
	Close(userID int64)
}

// Inbound is one received message, already stripped of transport detail.
type Inbound struct {
	CorrelationID string
	ChatID        int64
	MessageID     int64
	SenderID      int64
	DisplayName   string
	Username      string
	IsOperator    bool
	Text          string
	ReplyToText   string
	HasMedia      bool
}

type Config struct {
	Transport     Transport
	Operators     []int64
	Conversations Conversations
	Sessions      Sessions
	Replies       replytext.Catalog
	Logger        *slog.Logger
}

type Engine struct {
	transport     Transport
	operators     []int64
	conversations Conversations
	sessions      Sessions
	replies       replytext.Catalog
	logger        *slog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	replies := cfg.Replies
	if replies == (replytext.Catalog{}) {
		replies = replytext.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		transport:     cfg.Transport,
		operators:     append([]int64(nil), cfg.Operators...),
		conversations: cfg.Conversations,
		sessions:      cfg.Sessions,
		replies:       replies,
		logger:        logger,
	}, nil
}

// Handle routes one inbound message. The returned error reports only a
// failure to deliver the final reply to the originating sender; routing
// errors are already converted into replies.
func (e *Engine) Handle(ctx context.Context, m Inbound) error {
	cmd, args := splitCommand(strings.TrimSpace(m.Text))
	cmd = normalizeCommand(cmd)

	if m.IsOperator {
		return e.handleOperator(ctx, m, cmd, args)
	}

	switch cmd {
	case "/start":
		return e.send(ctx, m.ChatID, e.replies.Greeting)
	case "/help":
		return e.send(ctx, m.ChatID, e.replies.Help)
	case "/myid":
		return e.send(ctx, m.ChatID, fmt.Sprintf(e.replies.YourID, m.SenderID))
	case "/reply", "/close", "/send", "/cancel":
		return e.send(ctx, m.ChatID, e.replies.OperatorsOnly)
	}
	return e.handleUser(ctx, m)
}

// handleUser fans the message out to every operator. Each forward is
// attempted independently; one operator being unreachable must not starve
// the rest. The user always gets an acknowledgment: the generic one when at
// least one operator received the message, an explicit failure notice when
// none did (which includes the zero-operator deployment).
func (e *Engine) handleUser(ctx context.Context, m Inbound) error {
	e.conversations.MarkOpen(m.SenderID)

	lbl := label.Render(m.SenderID, m.DisplayName, m.Username)
	delivered := 0
	for _, op := range e.operators {
		if err := e.transport.CopyMessage(ctx, op, m.ChatID, m.MessageID); err != nil {
			e.logger.Warn("relay_forward_failed",
				"correlation_id", m.CorrelationID,
				"user_id", m.SenderID,
				"operator_id", op,
				"error", err.Error(),
			)
			continue
		}
		if err := e.transport.SendText(ctx, op, lbl); err != nil {
			// The copy arrived but the operator has no label to reply to;
			// count this operator as not reached.
			e.logger.Warn("relay_label_failed",
				"correlation_id", m.CorrelationID,
				"user_id", m.SenderID,
				"operator_id", op,
				"error", err.Error(),
			)
			continue
		}
		delivered++
	}

	e.logger.Info("relay_user_message",
		"correlation_id", m.CorrelationID,
		"user_id", m.SenderID,
		"operators_reached", delivered,
		"operators_total", len(e.operators),
	)

	ack := e.replies.Delivered
	if delivered == 0 {
		ack = e.replies.Undeliverable
	}
	return e.send(ctx, m.ChatID, ack)
}

func (e *Engine) handleOperator(ctx context.Context, m Inbound, cmd, args string) error {
	stage := e.sessions.Stage(m.SenderID)
	if stage != session.StageIdle {
		// A live compose session consumes the operator's input so a typed
		// target or body can never leak into the reply-to or guidance
		// paths. Only /cancel escapes.
		if cmd == "/cancel" {
			e.sessions.Reset(m.SenderID)
			return e.send(ctx, m.ChatID, e.replies.ComposeCancelled)
		}
		return e.continueCompose(ctx, m, stage)
	}

	switch cmd {
	case "/start":
		return e.send(ctx, m.ChatID, e.replies.Greeting)
	case "/help":
		return e.send(ctx, m.ChatID, e.replies.Help)
	case "/myid":
		return e.send(ctx, m.ChatID, fmt.Sprintf(e.replies.YourID, m.SenderID))
	case "/cancel":
		return e.send(ctx, m.ChatID, e.replies.NothingToCancel)
	case "/reply":
		return e.handleReply(ctx, m, args)
	case "/close":
		return e.handleClose(ctx, m, args)
	case "/send":
		e.sessions.Begin(m.SenderID)
		return e.send(ctx, m.ChatID, e.replies.ComposeStart)
	}

	if strings.TrimSpace(m.ReplyToText) != "" {
		return e.handleThreadedReply(ctx, m)
	}
	return e.send(ctx, m.ChatID, e.replies.Guidance)
}

func (e *Engine) handleReply(ctx context.Context, m Inbound, args string) error {
	target, body, err := parseReplyArgs(args, m.ReplyToText)
	switch {
	case errors.Is(err, ErrMissingBody):
		return e.send(ctx, m.ChatID, e.replies.ReplyUsage)
	case errors.Is(err, ErrInvalidIdentity):
		return e.send(ctx, m.ChatID, e.replies.InvalidIdentity)
	case err != nil:
		return err
	}
	return e.deliver(ctx, m, target, body)
}

func (e *Engine) handleClose(ctx context.Context, m Inbound, args string) error {
	if strings.TrimSpace(args) == "" {
		return e.send(ctx, m.ChatID, e.replies.CloseUsage)
	}
	first := strings.Fields(args)[0]
	target, err := parseIdentity(first)
	if err != nil {
		return e.send(ctx, m.ChatID, e.replies.InvalidIdentity)
	}

	e.conversations.Close(target)
	if err := e.transport.SendText(ctx, target, e.replies.Closed); err != nil {
		// Best effort only; the close already happened.
		e.logger.Warn("close_notify_failed",
			"correlation_id", m.CorrelationID,
			"operator_id", m.SenderID,
			"user_id", target,
			"error", err.Error(),
		)
	}
	e.logger.Info("conversation_closed",
		"correlation_id", m.CorrelationID,
		"operator_id", m.SenderID,
		"user_id", target,
	)
	return e.send(ctx, m.ChatID, fmt.Sprintf(e.replies.CloseConfirm, target))
}

// handleThreadedReply routes an operator message whose reply-to anchor may
// carry an identity label. This path is text-only.
func (e *Engine) handleThreadedReply(ctx context.Context, m Inbound) error {
	target, ok := label.ExtractID(m.ReplyToText)
	if !ok {
		return e.send(ctx, m.ChatID, e.replies.NoLabel)
	}
	if m.HasMedia || strings.TrimSpace(m.Text) == "" {
		return e.send(ctx, m.ChatID, e.replies.TextOnly)
	}
	return e.deliver(ctx, m, target, strings.TrimSpace(m.Text))
}

func (e *Engine) continueCompose(ctx context.Context, m Inbound, stage session.Stage) error {
	switch stage {
	case session.StageAwaitTarget:
		target, err := e.sessions.SubmitTarget(m.SenderID, m.Text)
		if errors.Is(err, session.ErrInvalidTarget) {
			return e.send(ctx, m.ChatID, e.replies.InvalidIdentity)
		}
		if err != nil {
			return err
		}
		if target == 0 {
			// The session raced back to idle between Stage and SubmitTarget.
			return e.send(ctx, m.ChatID, e.replies.Guidance)
		}
		return e.send(ctx, m.ChatID, fmt.Sprintf(e.replies.ComposeTargetOK, target))

	case session.StageAwaitBody:
		if m.HasMedia || strings.TrimSpace(m.Text) == "" {
			// Keep the session alive so the operator can retry with text.
			return e.send(ctx, m.ChatID, e.replies.ComposeBodyOnly)
		}
		target, err := e.sessions.TakeTarget(m.SenderID)
		if errors.Is(err, session.ErrNoPendingTarget) {
			e.logger.Error("compose_target_missing",
				"correlation_id", m.CorrelationID,
				"operator_id", m.SenderID,
			)
			return e.send(ctx, m.ChatID, e.replies.ComposeBroken)
		}
		if err != nil {
			return err
		}
		return e.deliver(ctx, m, target, strings.TrimSpace(m.Text))
	}
	return nil
}

// deliver sends body to the target user and reports the outcome to the
// operator who initiated the send.
func (e *Engine) deliver(ctx context.Context, m Inbound, target int64, body string) error {
	if err := e.transport.SendText(ctx, target, body); err != nil {
		e.logger.Warn("operator_delivery_failed",
			"correlation_id", m.CorrelationID,
			"operator_id", m.SenderID,
			"user_id", target,
			"error", err.Error(),
		)
		return e.send(ctx, m.ChatID, fmt.Sprintf(e.replies.SendFailed, target, err.Error()))
	}
	e.logger.Info("operator_delivery_ok",
		"correlation_id", m.CorrelationID,
		"operator_id", m.SenderID,
		"user_id", target,
	)
	return e.send(ctx, m.ChatID, fmt.Sprintf(e.replies.Sent, target))
}

func (e *Engine) send(ctx context.Context, chatID int64, text string) error {
	if err := e.transport.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
