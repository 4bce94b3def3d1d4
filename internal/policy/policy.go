// Package policy decides whether a reply is socially required regardless of
// how well the corpus matched.
package policy

import (
	"regexp"
	"strings"
)

// ChatKind classifies the conversation a message arrived in.
type ChatKind string

const (
	// ChatPrivate is a one-to-one conversation with the bot.
	ChatPrivate ChatKind = "private"
	// ChatGroup is any multi-party conversation.
	ChatGroup ChatKind = "group"
)

// NecessaryToReply reports whether the bot owes a reply to the message.
// Private messages always warrant one. In a group the bot's handle must
// appear as a whole-word, case-sensitive @mention. An empty handle (identity
// not yet resolved) never counts as mentioned.
func NecessaryToReply(kind ChatKind, text, botHandle string) bool {
	if kind == ChatPrivate {
		return true
	}
	handle := strings.TrimSpace(botHandle)
	if handle == "" {
		return false
	}
	mention := regexp.MustCompile(`@` + regexp.QuoteMeta(handle) + `\b`)
	return mention.MatchString(text)
}
