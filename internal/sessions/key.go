// Package sessions builds the canonical conversation partition keys used by
// ConversationStore. Session keys follow the form:
//
//	<channel>:<chat_id>
//
// with extended forms for cron-triggered and subagent turns so that
// synthetic prompts never collide with a real channel's session space.
package sessions

import "fmt"

// BuildSessionKey builds the canonical session key for a channel conversation.
func BuildSessionKey(channel, chatID string) string {
	return channel + ":" + chatID
}

// BuildCronSessionKey builds the session key for a cron job's synthetic run.
//
//	cron:{jobID}:run:{runID}
func BuildCronSessionKey(jobID, runID string) string {
	return fmt.Sprintf("cron:%s:run:%s", jobID, runID)
}

// BuildSubagentSessionKey builds the session key for a subagent invocation.
//
//	subagent:{label}
func BuildSubagentSessionKey(label string) string {
	return "subagent:" + label
}

// IsCronSession reports whether key was built by BuildCronSessionKey.
func IsCronSession(key string) bool {
	return len(key) > 5 && key[:5] == "cron:"
}
