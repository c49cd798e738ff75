package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BlockType discriminates the variants of a content block.
type BlockType string

const (
	BlockText             BlockType = "text"
	BlockThinking         BlockType = "thinking"
	BlockRedactedThinking BlockType = "redacted_thinking"
	BlockImage            BlockType = "image"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImagePlaceholder stands in for an image a recipient cannot accept.
const ImagePlaceholder = "[image]"

var (
	// ErrUnknownBlockKind indicates a block carried a type tag outside the known set.
	ErrUnknownBlockKind = errors.New("unknown content block kind")
	// ErrEmptyBlocks indicates a block sequence with no blocks.
	ErrEmptyBlocks = errors.New("content block sequence must not be empty")
)

// Block is one element of a structured message body. Only the fields that
// belong to Type are meaningful. Origin names the vendor that produced a
// thinking or redacted thinking block; signatures only verify there.
type Block struct {
	Type      BlockType
	Text      string
	Thinking  string
	Signature string
	Data      string
	URL       string
	Origin    string
}

func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

func ThinkingBlock(thinking, signature string) Block {
	return Block{Type: BlockThinking, Thinking: thinking, Signature: signature}
}

func RedactedThinkingBlock(data string) Block {
	return Block{Type: BlockRedactedThinking, Data: data}
}

func ImageBlock(url string) Block { return Block{Type: BlockImage, URL: url} }

// From returns b tagged with the producing vendor.
func (b Block) From(origin string) Block {
	b.Origin = origin
	return b
}

// Validate reports ErrUnknownBlockKind for unrecognised tags.
func (b Block) Validate() error {
	switch b.Type {
	case BlockText, BlockThinking, BlockRedactedThinking, BlockImage:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBlockKind, string(b.Type))
	}
}

type textWire struct {
	Type BlockType `json:"type"`
	Text string    `json:"text"`
}

type thinkingWire struct {
	Type      BlockType `json:"type"`
	Thinking  string    `json:"thinking"`
	Signature string    `json:"signature"`
	Origin    string    `json:"origin,omitempty"`
}

type redactedWire struct {
	Type   BlockType `json:"type"`
	Data   string    `json:"data"`
	Origin string    `json:"origin,omitempty"`
}

type imageWire struct {
	Type BlockType `json:"type"`
	URL  string    `json:"url"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(textWire{Type: b.Type, Text: b.Text})
	case BlockThinking:
		return json.Marshal(thinkingWire{Type: b.Type, Thinking: b.Thinking, Signature: b.Signature, Origin: b.Origin})
	case BlockRedactedThinking:
		return json.Marshal(redactedWire{Type: b.Type, Data: b.Data, Origin: b.Origin})
	case BlockImage:
		return json.Marshal(imageWire{Type: b.Type, URL: b.URL})
	default:
		return nil, b.Validate()
	}
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      BlockType `json:"type"`
		Text      string    `json:"text"`
		Thinking  string    `json:"thinking"`
		Signature string    `json:"signature"`
		Data      string    `json:"data"`
		URL       string    `json:"url"`
		Origin    string    `json:"origin"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var decoded Block
	switch raw.Type {
	case BlockText:
		decoded = TextBlock(raw.Text)
	case BlockThinking:
		decoded = ThinkingBlock(raw.Thinking, raw.Signature).From(raw.Origin)
	case BlockRedactedThinking:
		decoded = RedactedThinkingBlock(raw.Data).From(raw.Origin)
	case BlockImage:
		decoded = ImageBlock(raw.URL)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBlockKind, string(raw.Type))
	}
	*b = decoded
	return nil
}

// Content is a message body: either a plain string or a non-empty ordered
// sequence of blocks. The zero value is the empty string.
type Content struct {
	text   string
	blocks []Block
}

// Text returns plain string content.
func Text(s string) Content { return Content{text: s} }

// Blocks returns block sequence content. At least one block is required and
// every block must carry a known tag.
func Blocks(blocks ...Block) (Content, error) {
	if len(blocks) == 0 {
		return Content{}, ErrEmptyBlocks
	}
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return Content{}, err
		}
	}
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return Content{blocks: out}, nil
}

// IsBlockSequence reports whether c holds blocks rather than a plain string.
func IsBlockSequence(c Content) bool { return c.IsBlockSequence() }

func (c Content) IsBlockSequence() bool { return len(c.blocks) > 0 }

// String returns the plain string form, or "" for block sequences.
func (c Content) String() string { return c.text }

// Blocks returns a copy of the block sequence, or nil for plain strings.
func (c Content) Blocks() []Block {
	if len(c.blocks) == 0 {
		return nil
	}
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsBlockSequence() {
		return json.Marshal(c.blocks)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("content is empty")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	case '[':
		var blocks []Block
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return err
		}
		decoded, err := Blocks(blocks...)
		if err != nil {
			return err
		}
		*c = decoded
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of blocks")
	}
}

// RenderableText returns the human-readable text of a block. Redacted
// thinking and images have none.
func RenderableText(b Block) (string, bool) {
	switch b.Type {
	case BlockText:
		return b.Text, true
	case BlockThinking:
		return b.Thinking, true
	default:
		return "", false
	}
}

// Flatten joins all renderable text of c with newlines.
func Flatten(c Content) string {
	if !c.IsBlockSequence() {
		return c.text
	}
	parts := make([]string, 0, len(c.blocks))
	for _, b := range c.blocks {
		if text, ok := RenderableText(b); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// Message is one transcript entry.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// UserText builds a user message holding a single text block.
func UserText(prompt string) Message {
	return Message{Role: RoleUser, Content: Content{blocks: []Block{TextBlock(prompt)}}}
}

// UserTextWithImage builds a user message with the prompt followed by an image reference.
func UserTextWithImage(prompt, imageURL string) Message {
	if imageURL == "" {
		return UserText(prompt)
	}
	return Message{Role: RoleUser, Content: Content{blocks: []Block{TextBlock(prompt), ImageBlock(imageURL)}}}
}

// Assistant builds an assistant message from blocks.
func Assistant(blocks ...Block) (Message, error) {
	c, err := Blocks(blocks...)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: RoleAssistant, Content: c}, nil
}

// Append returns a new transcript consisting of base followed by msgs. base is
// never modified.
func Append(base []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(base)+len(msgs))
	out = append(out, base...)
	return append(out, msgs...)
}

// WithoutImages returns a copy of transcript where image blocks are removed.
// A message left with no blocks keeps a text placeholder.
func WithoutImages(transcript []Message) []Message {
	out := make([]Message, 0, len(transcript))
	for _, m := range transcript {
		if !m.Content.IsBlockSequence() {
			out = append(out, m)
			continue
		}
		kept := make([]Block, 0, len(m.Content.blocks))
		for _, b := range m.Content.blocks {
			if b.Type != BlockImage {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			kept = append(kept, TextBlock(ImagePlaceholder))
		}
		out = append(out, Message{Role: m.Role, Content: Content{blocks: kept}})
	}
	return out
}
