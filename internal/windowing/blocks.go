package windowing

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive
	End   int // exclusive
}

// GroupBlocks groups messages into atomic units that preserve tool-use pairs.
// Invariants:
// - A pair is exactly two adjacent messages: assistant(tool_use+...) then user(tool_result...).
// - In the user message, all tool_result blocks must come first; text (if any) comes after.
// - Every tool_use id in the assistant message has a tool_result in the
// user message's leading segment, and no other ids appear there.
// - tool_result blocks with is_error=true are treated the same for grouping.
func GroupBlocks(msgs []anthropic.MessageParam) []Group {
	return groupBlocks(msgs, zerolog.Nop())
}

func groupBlocks(msgs []anthropic.MessageParam, log zerolog.Logger) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		if msgs[i].Role == anthropic.MessageParamRoleAssistant {
			if useIDs := toolUseIDs(msgs[i]); len(useIDs) > 0 {
				reason := "not_followed_by_user"
				if i+1 < len(msgs) && msgs[i+1].Role == anthropic.MessageParamRoleUser {
					reason = pairDefect(useIDs, msgs[i+1])
					if reason == "" {
						groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
						i += 2
						continue
					}
				}
				log.Debug().Str("reason", reason).Int("idx", i).Msg("exclude pair")
			}
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// pairDefect returns why user cannot close the tool_use ids, or "" when it can.
func pairDefect(useIDs map[string]struct{}, user anthropic.MessageParam) string {
	resultIDs, ok := leadingToolResultIDs(user)
	if !ok {
		return "ordering_invalid"
	}
	for id := range useIDs {
		if _, found := resultIDs[id]; !found {
			return "missing_results"
		}
	}
	for id := range resultIDs {
		if _, found := useIDs[id]; !found {
			return "extra_results"
		}
	}
	return ""
}

func toolUseIDs(m anthropic.MessageParam) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, blk := range m.Content {
		if tu := blk.OfToolUse; tu != nil && tu.ID != "" {
			ids[tu.ID] = struct{}{}
		}
	}
	return ids
}

// leadingToolResultIDs collects tool_result ids up to the first other block.
// ok is false when a tool_result appears after a non-result block.
func leadingToolResultIDs(m anthropic.MessageParam) (ids map[string]struct{}, ok bool) {
	ids = make(map[string]struct{})
	seenOther := false
	for _, blk := range m.Content {
		if tr := blk.OfToolResult; tr != nil {
			if seenOther {
				return ids, false
			}
			if tr.ToolUseID != "" {
				ids[tr.ToolUseID] = struct{}{}
			}
			continue
		}
		seenOther = true
	}
	return ids, true
}
