package planner

import "context"

// PlanRequest is what the Planner hands to the plan-producing LLM on every
// iteration of the step loop: the goal, a pruned transcript, and the latest
// observation rendered as text (§4.5 Plan stage).
type PlanRequest struct {
	Goal        string
	History     []string
	Observation string
	Hint        string
}

// PlanLLM is the capability record (§9) for the model that turns a
// PlanRequest into the next raw action, as a JSON object string possibly
// requiring repair before it parses.
type PlanLLM interface {
	NextAction(ctx context.Context, req PlanRequest) (rawJSON string, err error)
}
