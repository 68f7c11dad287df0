package relay

import (
	"strconv"
	"strings"

	"github.com/quailyquaily/relaydesk/internal/label"
)

// splitCommand separates a leading slash command from its arguments.
// Returns "" for the command when the text is not a command.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	word := text
	rest := ""
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		word = text[:i]
		rest = strings.TrimSpace(text[i:])
	}
	return word, rest
}

// normalizeCommand lowercases a command and strips a bot-name suffix
// ("/reply@relaydesk_bot" -> "/reply").
func normalizeCommand(cmd string) string {
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}

// parseIdentity parses a positive integer identity from operator input.
func parseIdentity(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidIdentity
	}
	return id, nil
}

// parseReplyArgs resolves the target and body of a /reply invocation.
// Two or more tokens is always the explicit "/reply <id> <body>" form: the
// first token must be a positive integer identity. A single token falls back
// to the quoted label for the target, with the token as the whole body.
func parseReplyArgs(args, replyToText string) (int64, string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0, "", ErrMissingBody
	}

	first := args
	rest := ""
	if i := strings.IndexAny(args, " \t\n"); i >= 0 {
		first = args[:i]
		rest = strings.TrimSpace(args[i:])
	}
	if rest != "" {
		id, err := strconv.ParseInt(first, 10, 64)
		if err != nil || id <= 0 {
			return 0, "", ErrInvalidIdentity
		}
		return id, rest, nil
	}

	if id, ok := label.ExtractID(replyToText); ok {
		return id, args, nil
	}
	return 0, "", ErrMissingBody
}
