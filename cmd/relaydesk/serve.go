package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/relaydesk/internal/conversation"
	"github.com/quailyquaily/relaydesk/internal/logutil"
	"github.com/quailyquaily/relaydesk/internal/relay"
	"github.com/quailyquaily/relaydesk/internal/replytext"
	"github.com/quailyquaily/relaydesk/internal/session"
	"github.com/quailyquaily/relaydesk/internal/telegram"
	"github.com/spf13/cobra"
)

type chatWorker struct {
	Jobs chan relay.Inbound
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or RELAYDESK_TELEGRAM_BOT_TOKEN)")
			}

			baseURL := strings.TrimRight(strings.TrimSpace(flagOrViperString(cmd, "telegram-base-url", "telegram.base_url")), "/")
			if baseURL == "" {
				baseURL = "https://api.telegram.org"
			}

			var operators []int64
			seen := make(map[int64]bool)
			for _, s := range flagOrViperStringArray(cmd, "operator-id", "relay.operator_ids") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				id, err := strconv.ParseInt(s, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid relay.operator_ids entry %q: must be a positive integer", s)
				}
				if seen[id] {
					continue
				}
				seen[id] = true
				operators = append(operators, id)
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			if len(operators) == 0 {
				logger.Warn("serve_no_operators", "hint", "user messages will be acknowledged as undeliverable")
			}

			replies, err := replytext.Load(strings.TrimSpace(flagOrViperString(cmd, "replies-file", "relay.replies_file")))
			if err != nil {
				return err
			}

			pollTimeout := flagOrViperDuration(cmd, "poll-timeout", "telegram.poll_timeout")
			if pollTimeout <= 0 {
				pollTimeout = 30 * time.Second
			}
			handleTimeout := flagOrViperDuration(cmd, "handle-timeout", "relay.handle_timeout")
			if handleTimeout <= 0 {
				handleTimeout = 2 * time.Minute
			}
			maxConc := flagOrViperInt(cmd, "max-concurrency", "relay.max_concurrency")
			if maxConc <= 0 {
				maxConc = 8
			}
			sem := make(chan struct{}, maxConc)

			httpClient := &http.Client{Timeout: 60 * time.Second}
			api := telegram.NewAPI(httpClient, baseURL, token)

			me, err := api.GetMe(cmd.Context())
			if err != nil {
				return fmt.Errorf("getMe: %w", err)
			}

			engine, err := relay.NewEngine(relay.Config{
				Transport:     api,
				Operators:     operators,
				Conversations: conversation.NewStore(),
				Sessions:      session.NewStore(),
				Replies:       replies,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("relay_start",
				"base_url", baseURL,
				"bot_username", me.Username,
				"bot_id", me.ID,
				"operators", len(operators),
				"poll_timeout", pollTimeout.String(),
				"handle_timeout", handleTimeout.String(),
				"max_concurrency", maxConc,
			)

			var (
				mu      sync.Mutex
				workers = make(map[int64]*chatWorker)
				wg      sync.WaitGroup
				offset  int64
			)

			// Per chat serial; across chats parallel.
			getOrStartWorkerLocked := func(chatID int64) *chatWorker {
				if w, ok := workers[chatID]; ok && w != nil {
					return w
				}
				w := &chatWorker{Jobs: make(chan relay.Inbound, 16)}
				workers[chatID] = w

				wg.Add(1)
				go func() {
					defer wg.Done()
					for job := range w.Jobs {
						sem <- struct{}{}
						func() {
							defer func() { <-sem }()
							hctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
							defer cancel()
							if err := engine.Handle(hctx, job); err != nil {
								logger.Warn("relay_handle_error",
									"correlation_id", job.CorrelationID,
									"chat_id", job.ChatID,
									"error", err.Error(),
								)
							}
						}()
					}
				}()

				return w
			}

			for ctx.Err() == nil {
				updates, nextOffset, err := api.GetUpdates(ctx, offset, pollTimeout)
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					if telegram.IsPollTimeout(err) {
						continue
					}
					logger.Warn("relay_get_updates_error", "error", err.Error())
					time.Sleep(1 * time.Second)
					continue
				}
				offset = nextOffset

				for _, u := range updates {
					in, ok := inboundFromUpdate(u, operators)
					if !ok {
						continue
					}
					mu.Lock()
					w := getOrStartWorkerLocked(in.ChatID)
					mu.Unlock()
					logger.Debug("relay_enqueued",
						"correlation_id", in.CorrelationID,
						"chat_id", in.ChatID,
						"is_operator", in.IsOperator,
						"text_len", len(in.Text),
					)
					w.Jobs <- in
				}
			}

			logger.Info("relay_stopping")
			mu.Lock()
			for _, w := range workers {
				close(w.Jobs)
			}
			mu.Unlock()
			wg.Wait()
			return nil
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("telegram-base-url", "https://api.telegram.org", "Telegram API base URL.")
	cmd.Flags().StringArray("operator-id", nil, "Operator chat id(s) that receive forwarded messages (repeatable).")
	cmd.Flags().String("replies-file", "", "YAML file overriding the built-in reply texts.")
	cmd.Flags().Duration("poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Duration("handle-timeout", 2*time.Minute, "Per-message handling timeout.")
	cmd.Flags().Int("max-concurrency", 8, "Max number of chats processed concurrently.")

	return cmd
}

// inboundFromUpdate flattens a Telegram update into the routing input. Bot
// senders, service messages, and payload-less messages are dropped here.
func inboundFromUpdate(u telegram.Update, operators []int64) (relay.Inbound, bool) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return relay.Inbound{}, false
	}
	if msg.From.IsBot {
		return relay.Inbound{}, false
	}
	text := msg.TextOrCaption()
	if strings.TrimSpace(text) == "" && !msg.HasMedia() {
		return relay.Inbound{}, false
	}

	isOperator := false
	for _, op := range operators {
		if msg.From.ID == op {
			isOperator = true
			break
		}
	}

	return relay.Inbound{
		CorrelationID: newCorrelationID(),
		ChatID:        msg.Chat.ID,
		MessageID:     msg.MessageID,
		SenderID:      msg.From.ID,
		DisplayName:   telegram.DisplayName(msg.From),
		Username:      msg.From.Username,
		IsOperator:    isOperator,
		Text:          text,
		ReplyToText:   msg.ReplyTo.TextOrCaption(),
		HasMedia:      msg.HasMedia(),
	}, true
}

func newCorrelationID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
