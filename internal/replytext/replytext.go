// Package replytext holds every user- and operator-facing message the bridge
// sends. Deployments override individual entries from a YAML file; anything
// left empty keeps the built-in default.
package replytext

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the full set of canned replies. Entries containing a %d or %s
// verb are formatted with fmt.Sprintf at the call site.
type Catalog struct {
	Greeting      string `yaml:"greeting"`
	Help          string `yaml:"help"`
	YourID        string `yaml:"your_id"`
	Delivered     string `yaml:"delivered"`
	Undeliverable string `yaml:"undeliverable"`

	OperatorsOnly   string `yaml:"operators_only"`
	Guidance        string `yaml:"guidance"`
	NoLabel         string `yaml:"no_label"`
	TextOnly        string `yaml:"text_only"`
	InvalidIdentity string `yaml:"invalid_identity"`
	ReplyUsage      string `yaml:"reply_usage"`
	CloseUsage      string `yaml:"close_usage"`
	Sent            string `yaml:"sent"`
	SendFailed      string `yaml:"send_failed"`

	Closed       string `yaml:"closed"`
	CloseConfirm string `yaml:"close_confirm"`

	ComposeStart     string `yaml:"compose_start"`
	ComposeTargetOK  string `yaml:"compose_target_ok"`
	ComposeBodyOnly  string `yaml:"compose_body_only"`
	ComposeBroken    string `yaml:"compose_broken"`
	ComposeCancelled string `yaml:"compose_cancelled"`
	NothingToCancel  string `yaml:"nothing_to_cancel"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		Greeting: "Hi! This is the support bot. Send a message and an operator will get back to you.",
		Help: "/start - greeting\n/myid - show your ID\n/help - this message\n\n" +
			"Operators: /reply <id> <text>, /close <id>, /send (guided compose), " +
			"or reply directly to a label message.",
		YourID:        "Your ID: %d",
		Delivered:     "Your message has been delivered. Please wait for a reply.",
		Undeliverable: "Sorry, your message could not be delivered to an operator right now. Please try again later.",

		OperatorsOnly:   "Only operators can use this command.",
		Guidance:        "To answer a user: /reply <id> <text>, or reply to one of the label messages. /send starts a guided compose.",
		NoLabel:         "Could not find an ID in the quoted message. Use /reply <id> <text> instead.",
		TextOnly:        "Only text is supported on this path. Use /reply <id> <text> to send other content.",
		InvalidIdentity: "That is not a valid ID. It must be a positive number.",
		ReplyUsage:      "Usage: /reply <id> <text>",
		CloseUsage:      "Usage: /close <id>",
		Sent:            "Delivered to %d.",
		SendFailed:      "Could not deliver to %d: %s",

		Closed:       "The conversation has been closed. Thank you!",
		CloseConfirm: "Conversation with %d closed.",

		ComposeStart:     "Compose started. Send the target ID (a number). /cancel to abort.",
		ComposeTargetOK:  "Target %d accepted. Now send the message body.",
		ComposeBodyOnly:  "The compose body must be text. Send the text, or /cancel to abort.",
		ComposeBroken:    "Internal error: the compose session lost its target. Nothing was sent; start over with /send.",
		ComposeCancelled: "Compose cancelled.",
		NothingToCancel:  "Nothing to cancel.",
	}
}

// Load reads a YAML override file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read replies file %s: %w", path, err)
	}
	var overrides Catalog
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return c, fmt.Errorf("parse replies file %s: %w", path, err)
	}
	c.merge(overrides)
	return c, nil
}

func (c *Catalog) merge(o Catalog) {
	dst := []*string{
		&c.Greeting, &c.Help, &c.YourID, &c.Delivered, &c.Undeliverable,
		&c.OperatorsOnly, &c.Guidance, &c.NoLabel, &c.TextOnly,
		&c.InvalidIdentity, &c.ReplyUsage, &c.CloseUsage, &c.Sent, &c.SendFailed,
		&c.Closed, &c.CloseConfirm,
		&c.ComposeStart, &c.ComposeTargetOK, &c.ComposeBodyOnly,
		&c.ComposeBroken, &c.ComposeCancelled, &c.NothingToCancel,
	}
	src := []string{
		o.Greeting, o.Help, o.YourID, o.Delivered, o.Undeliverable,
		o.OperatorsOnly, o.Guidance, o.NoLabel, o.TextOnly,
		o.InvalidIdentity, o.ReplyUsage, o.CloseUsage, o.Sent, o.SendFailed,
		o.Closed, o.CloseConfirm,
		o.ComposeStart, o.ComposeTargetOK, o.ComposeBodyOnly,
		o.ComposeBroken, o.ComposeCancelled, o.NothingToCancel,
	}
	for i := range dst {
		if src[i] != "" {
			*dst[i] = src[i]
		}
	}
}
