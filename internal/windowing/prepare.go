// Package windowing picks the newest slice of a transcript that fits an input
// token budget, keeping tool_use/tool_result pairs together and starting the
// window on a user turn.
package windowing

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
)

// Stats summarizes the result of window preparation.
//
// Fields:
// - Total: estimated tokens for included groups only.
// - Budget: the input token budget used.
// - IncludedGroups: number of groups included.
// - SkippedGroups: total groups minus IncludedGroups.
// - OverBudgetNewest: true when the newest single group alone exceeds Budget.
// - DroppedLeading: groups that fit but were dropped so the window opens with a user turn.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
	DroppedLeading   int
}

// Window prepares send windows for one model conversation.
type Window struct {
	Budget  int
	Counter TokenCounter
	Logger  zerolog.Logger
}

// New returns a Window using the heuristic counter.
func New(budget int, logger zerolog.Logger) *Window {
	return &Window{Budget: budget, Counter: HeuristicCounter{}, Logger: logger}
}

// Prepare returns a subslice of msgs (oldest→newest) that fits within the
// budget without splitting groups.
//
// Rules:
// - Include whole groups scanning newest→oldest while total ≤ budget.
// - If the newest group alone exceeds budget, return an empty window and set OverBudgetNewest.
// - If budget ≤ 0, return an empty window (OverBudgetNewest set when any groups exist).
// - Leading groups that open with an assistant message are dropped.
func (w *Window) Prepare(msgs []anthropic.MessageParam) ([]anthropic.MessageParam, Stats) {
	budget := w.Budget
	if len(msgs) == 0 {
		return nil, Stats{Budget: budget}
	}

	counter := w.Counter
	if counter == nil {
		counter = HeuristicCounter{}
	}
	groups := groupBlocks(msgs, w.Logger)

	if budget <= 0 {
		return nil, Stats{Budget: budget, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	costs := make([]int, len(groups))
	for i, g := range groups {
		costs[i] = counter.CountGroup(g, msgs)
	}

	total := 0
	startIdx := len(groups)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		if startIdx == len(groups) && costs[gi] > budget {
			w.Logger.Debug().
				Str("reason", "over_budget_newest_group").
				Int("budget", budget).
				Int("cost", costs[gi]).
				Msg("window empty")
			return nil, Stats{
				Budget:           budget,
				SkippedGroups:    len(groups),
				OverBudgetNewest: true,
			}
		}
		if total+costs[gi] > budget {
			break
		}
		total += costs[gi]
		startIdx = gi
	}

	dropped := 0
	for startIdx < len(groups) && msgs[groups[startIdx].Start].Role != anthropic.MessageParamRoleUser {
		total -= costs[startIdx]
		startIdx++
		dropped++
	}
	if dropped > 0 {
		w.Logger.Debug().Int("groups", dropped).Msg("dropped leading assistant groups")
	}

	included := len(groups) - startIdx
	stats := Stats{
		Total:          total,
		Budget:         budget,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
		DroppedLeading: dropped,
	}
	if included == 0 {
		return nil, stats
	}
	return msgs[groups[startIdx].Start:], stats
}
