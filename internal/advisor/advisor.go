// Package advisor produces short spoken safety tips from the active hazard
// state via an LLM collaborator.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sheero-ai/sheero/internal/fusion"
)

// Provider generates one advisory line for a hazard snapshot.
type Provider interface {
	Advise(ctx context.Context, state fusion.HazardState) (string, error)
}

const systemPrompt = `You are an AI driving assistant. You should:
1. Provide helpful, concise responses about the driver's condition
2. Prioritize the driver's safety above all else
3. Suggest actions that keep the driver's attention on the road
4. Keep responses brief (one sentence)`

// BuildPrompt renders the advisory request for the model. Empty when no
// hazard flag is active.
func BuildPrompt(state fusion.HazardState) string {
	var concerns []string
	if state.Drowsy {
		concerns = append(concerns, "drowsiness")
	}
	if state.Stressed {
		concerns = append(concerns, "signs of stress")
	}
	if state.BlindSpotLeft {
		concerns = append(concerns, "a vehicle in the left blind spot")
	}
	if state.BlindSpotRight {
		concerns = append(concerns, "a vehicle in the right blind spot")
	}
	if len(concerns) == 0 {
		return ""
	}

	return fmt.Sprintf(`BE EXTREMELY SHORT IN YOUR RESPONSES. GIVE 1 line answer.
As a driving assistant, I need to help a driver who is showing %s.
Current turn signal: %s

Provide a brief, helpful suggestion that is:
1. Calming and supportive in tone
2. Safety-focused without being judgmental
3. Actionable (something the driver can do immediately)
4. Brief (under 20 words if possible)`,
		strings.Join(concerns, " and "), state.TurnSignal)
}
