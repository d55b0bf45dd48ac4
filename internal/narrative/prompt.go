package narrative

import (
	"fmt"

	"github.com/planwise/planner-cli/internal/model"
	"github.com/planwise/planner-cli/internal/projection"
)

const systemText = `You are a financial planning assistant. You write short plain-language
summaries of retirement projections for everyday investors.

Rules:
- Describe what the projection shows. Do not give personalized investment advice.
- Never promise or guarantee any outcome. Markets carry risk.
- Keep the summary under 200 words, in plain prose without headings or bullet points.`

const promptFmt = `Summarize the following retirement projection for the plan holder.

Projection inputs:
%s

Write the summary now.`

// buildPrompt renders the merged projection input into the narrative prompt.
func buildPrompt(input model.ProjectionInput) string {
	return fmt.Sprintf(promptFmt, projection.RenderContext(input))
}
