// Package conversation implements the per-session transcript store with its
// compaction policy. Turns are a tagged variant rather than a
// single unified message struct: the OpenAI and Anthropic wire dialects
// shape tool calls and their results completely differently, and the
// testable properties that matter here (every assistant tool-call turn is
// followed by exactly one matching tool-result turn per call, in order)
// only hold meaning against each dialect's own turn shape.
package conversation

import (
	"strings"
	"sync"
)

// Role tags a turn's originator.
type Role string

const (
	RoleUser Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool Role = "tool"
)

// PartType tags a ContentPart.
type PartType string

const (
	PartText PartType = "text"
	PartImageURL PartType = "image_url" // OpenAI-path data URL image
	PartImage PartType = "image" // Anthropic-path base64 image block
	PartDocument PartType = "document" // Anthropic-path base64 document block
	PartToolUse PartType = "tool_use" // Anthropic assistant content block
	PartToolResult PartType = "tool_result" // Anthropic user content block
)

// ContentPart is one element of a rich, multi-part turn body.
type ContentPart struct {
	Type           PartType

	Text           string // PartText

	//             not read by the runtime dialects
	ImageURL       string

	//             PartImageURL / PartImage / PartDocument
	MediaType      string
	Data           string

	//             PartToolUse
	ToolUseID      string
	ToolName       string
	ToolInput      map[string]any

	//             PartToolResult
	ToolResultID   string
	ToolResultText string
}

// ToolCall is one OpenAI-dialect tool invocation attached to an assistant turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON argument string, as received from the wire
}

// Turn is one entry in a conversation's transcript.
type Turn struct {
	Role       Role

	//         Plain-text fast path, used when no rich content or tool data applies.
	Text       string

	//         Rich multi-part content: user turns with images/documents on either
	//         dialect, and Anthropic assistant/tool-result turns.
	Parts      []ContentPart

	//         OpenAI-dialect assistant turn: zero or more tool calls alongside Text.
	ToolCalls  []ToolCall

	//         OpenAI-dialect tool-role turn: result of exactly one call.
	ToolCallID string
	ToolName   string
}

// CharLen approximates this turn's contribution to the compaction heuristic.
func (t Turn) CharLen() int {
	n := len(t.Text)
	for _, p := range t.Parts {
		n += len(p.Text) + len(p.Data) + len(p.ToolResultText)
	}
	for _, c := range t.ToolCalls {
		n += len(c.Arguments) + len(c.Name)
	}
	return n
}

// Conversation is the transcript for one session key.
type Conversation struct {
	SessionKey string
	Summary    string
	Turns      []Turn
}

func (c *Conversation) addTurn(t Turn) {
	c.Turns = append(c.Turns, t)
}

// AddUserText appends a plain-text user turn.
func (c *Conversation) AddUserText(text string) {
	c.addTurn(Turn{Role: RoleUser, Text: text})
}

// AddUserParts appends a multi-part user turn (text plus images/documents).
func (c *Conversation) AddUserParts(parts []ContentPart) {
	c.addTurn(Turn{Role: RoleUser, Parts: parts})
}

// AppendToLastUserText appends additional text content to the most recently
// added user turn — used by the document side-channel to attach extracted
// notes without creating a new turn. If the last turn carries rich parts, a
// text part is appended; otherwise the plain Text field is extended.
func (c *Conversation) AppendToLastUserText(extra string) {
	if len(c.Turns) == 0 {
		return
	}
	last := &c.Turns[len(c.Turns)-1]
	if len(last.Parts) > 0 {
		last.Parts = append(last.Parts, ContentPart{Type: PartText, Text: extra})
		return
	}
	last.Text = strings.TrimRight(last.Text, "\n") + "\n\n" + extra
}

// AddAssistantText appends a plain-text assistant turn (no tool calls).
func (c *Conversation) AddAssistantText(text string) {
	c.addTurn(Turn{Role: RoleAssistant, Text: text})
}

// AddOpenAIToolCalls appends an OpenAI-dialect assistant turn carrying tool calls.
func (c *Conversation) AddOpenAIToolCalls(text string, calls []ToolCall) {
	c.addTurn(Turn{Role: RoleAssistant, Text: text, ToolCalls: calls})
}

// AddOpenAIToolResult appends one OpenAI-dialect tool-role turn for a single call.
func (c *Conversation) AddOpenAIToolResult(toolCallID, name, result string) {
	c.addTurn(Turn{Role: RoleTool, Text: result, ToolCallID: toolCallID, ToolName: name})
}

// AddAnthropicAssistantBlocks appends an Anthropic-dialect assistant turn as
// an ordered content-block list (text interleaved with tool_use blocks).
func (c *Conversation) AddAnthropicAssistantBlocks(parts []ContentPart) {
	c.addTurn(Turn{Role: RoleAssistant, Parts: parts})
}

// AddAnthropicToolResults appends a single user turn carrying one
// tool_result block per call, matching order.
func (c *Conversation) AddAnthropicToolResults(results []ContentPart) {
	c.addTurn(Turn{Role: RoleUser, Parts: results})
}

// Store owns all Conversation records for the process lifetime, indexed by
// session key.
type Store struct {
	mu                sync.Mutex
	conversations     map[string]*Conversation
	maxTokens         int
	compactThreshold  float64
	preserveTurnCount int
}

// NewStore constructs a conversation store. maxTokens feeds the compaction
// size heuristic; threshold (default 0.8) and preserveCount (default 5,
// floored at 1) control when and how much is compacted.
func NewStore(maxTokens int, threshold float64, preserveCount int) *Store {
	if threshold <= 0 {
		threshold = 0.8
	}
	if preserveCount < 1 {
		preserveCount = 1
	}
	return &Store{
		conversations:     make(map[string]*Conversation),
		maxTokens:         maxTokens,
		compactThreshold:  threshold,
		preserveTurnCount: preserveCount,
	}
}

// Get returns the conversation for sessionKey, creating it if absent.
func (s *Store) Get(sessionKey string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[sessionKey]
	if !ok {
		conv = &Conversation{SessionKey: sessionKey}
		s.conversations[sessionKey] = conv
	}
	return conv
}

// maxChars is the size-proxy denominator: max(2000, maxTokens*8).
func (s *Store) maxChars() int {
	m := s.maxTokens * 8
	if m < 2000 {
		return 2000
	}
	return m
}

// ShouldCompact reports whether conv's estimated size has crossed the
// compaction threshold.
func (s *Store) ShouldCompact(conv *Conversation) bool {
	total := len(conv.Summary)
	for _, t := range conv.Turns {
		total += t.CharLen()
	}
	ratio := float64(total) / float64(s.maxChars())
	return ratio >= s.compactThreshold
}

// CompactMessages trims conv down to the tail of preserveCount turns (at
// least 1) and returns the dropped prefix for the caller to summarize. If
// conv is already at or below the preserve count, returns nil and leaves
// conv untouched.
func (s *Store) CompactMessages(conv *Conversation) []Turn {
	keep := s.preserveTurnCount
	if len(conv.Turns) <= keep {
		return nil
	}
	cut := len(conv.Turns) - keep
	dropped := append([]Turn(nil), conv.Turns[:cut]...)
	conv.Turns = append([]Turn(nil), conv.Turns[cut:]...)
	return dropped
}

// TurnsToText renders a slice of turns as "role: content" lines for
// summarization prompts.
func TurnsToText(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		content := t.Text
		if content == "" && len(t.Parts) > 0 {
			var parts []string
			for _, p := range t.Parts {
				if p.Text != "" {
					parts = append(parts, p.Text)
				}
			}
			content = strings.Join(parts, " ")
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
