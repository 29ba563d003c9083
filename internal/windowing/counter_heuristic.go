package windowing

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m anthropic.MessageParam) int
	CountGroup(g Group, all []anthropic.MessageParam) int
}

// HeuristicCounter is a deterministic estimator.
// Rules:
// - text blocks: rune count of the text
// - tool_result blocks: rune count of nested text parts
// - tool_use blocks: rune count of the name plus the JSON input
// Every block adds a fixed overhead.
type HeuristicCounter struct{}

// Fixed per-block overhead; tests depend on this value.
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m anthropic.MessageParam) int {
	total := 0
	for _, blk := range m.Content {
		total += countBlock(blk)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []anthropic.MessageParam) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}

func countBlock(blk anthropic.ContentBlockParamUnion) int {
	switch {
	case blk.OfText != nil:
		return utf8.RuneCountInString(blk.OfText.Text) + blockOverhead
	case blk.OfToolResult != nil:
		n := 0
		for _, part := range blk.OfToolResult.Content {
			if part.OfText != nil {
				n += utf8.RuneCountInString(part.OfText.Text)
			}
		}
		return n + blockOverhead
	case blk.OfToolUse != nil:
		return utf8.RuneCountInString(blk.OfToolUse.Name) + inputRunes(blk.OfToolUse.Input) + blockOverhead
	}
	// images, documents, thinking: overhead only
	return blockOverhead
}

func inputRunes(input any) int {
	switch v := input.(type) {
	case nil:
		return 0
	case json.RawMessage:
		return utf8.RuneCount(v)
	case string:
		return utf8.RuneCountInString(v)
	}
	b, err := json.Marshal(input)
	if err != nil {
		return 0
	}
	return utf8.RuneCount(b)
}
