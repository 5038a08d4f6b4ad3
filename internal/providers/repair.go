package providers

import "github.com/legionai/legion/pkg/models"

// Repair is the defensive provider-side pass allowed by spec §9: for every
// assistant message with tool-calls, ensure the very next message carries
// exactly one matching tool-result per call, in the same order — dropping
// unmatched results and synthesizing a placeholder for anything missing.
// It is not the normative enforcer — the Agent Runtime is — but a provider
// may call this before dispatch to tolerate upstream drift without
// crashing the turn.
func Repair(history []models.Message) []models.Message {
	repaired := make([]models.Message, 0, len(history))

	for i := 0; i < len(history); i++ {
		msg := history[i]
		repaired = append(repaired, msg)

		calls := msg.ToolCalls()
		if len(calls) == 0 {
			continue
		}

		var found map[string]models.Block
		consumedNext := false
		if i+1 < len(history) {
			next := history[i+1]
			found = make(map[string]models.Block, len(calls))
			for _, b := range next.Content {
				if b.Type == models.BlockToolResult && b.ToolResult != nil {
					found[b.ToolResult.ToolCallID] = b
				}
			}
			consumedNext = len(found) > 0
		}

		blocks := make([]models.Block, 0, len(calls))
		for _, c := range calls {
			if b, ok := found[c.ID]; ok {
				blocks = append(blocks, b)
				continue
			}
			blocks = append(blocks, models.ToolResultBlock(models.ToolResult{
				ToolCallID: c.ID,
				Content:    "no result recorded",
				IsError:    true,
			}))
		}

		repaired = append(repaired, models.Message{
			ID:      msg.ID + "-repaired-results",
			Author:  msg.Author,
			Role:    models.RoleUser,
			Content: blocks,
		})

		if consumedNext {
			i++ // the next message's results were folded in; skip past it
		}
	}

	return repaired
}
