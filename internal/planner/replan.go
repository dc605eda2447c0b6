package planner

import (
	coreerrors "surf-core/internal/errors"
)

// replanStrategy is the Planner's scripted response to a failure kind,
// consulted after two executor-level failures of the same step (§4.5
// "Replanning policy").
type replanStrategy string

const (
	strategyStopImmediately replanStrategy = "stop_immediately"
	strategyWaitAndRetry    replanStrategy = "wait_and_retry"
	strategySnapshotFirst   replanStrategy = "snapshot_first"
	strategyAskLLM          replanStrategy = "ask_llm"
)

// strategyFor maps a failure Kind to the scripted replanning strategy.
// Kinds absent from the table fall back to asking the LLM to regenerate a
// plan conditioned on the failure.
func strategyFor(kind coreerrors.Kind) replanStrategy {
	switch kind {
	case coreerrors.KindPermissionDenied:
		return strategyStopImmediately
	case coreerrors.KindNetworkError, coreerrors.KindTimeout:
		return strategyWaitAndRetry
	case coreerrors.KindElementMissing:
		return strategySnapshotFirst
	default:
		return strategyAskLLM
	}
}
