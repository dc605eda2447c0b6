package planner

import (
	"net/url"
	"strings"

	"surf-core/internal/coreapi"
)

// blockingDialogTitles are sheet/dialog button labels recognized across
// locales as "dismiss without consuming a step" (§4.5 step 1).
var blockingDialogTitles = []string{"Cancel", "Close", "취소", "닫기"}

// findBlockingDialog returns the ref of a visible Cancel/Close-style button
// if tree contains one, so the Planner can dismiss it before Observe
// continues.
func findBlockingDialog(tree coreapi.UITree) (ref string, found bool) {
	for _, n := range tree.Flatten() {
		for _, title := range blockingDialogTitles {
			if n.Name == title {
				return n.StableRefID, true
			}
		}
	}
	return "", false
}

// luckyGoalKeywords mark a goal as an "I-feel-lucky" fetch: the Planner
// forces Google's btnI redirect once instead of waiting on the LLM to
// discover it (§4.5 step 2(b), scenario 1).
var luckyGoalKeywords = []string{"첫 번째 결과", "i'm feeling lucky", "i feel lucky", "first result"}

func preferLuckyOnly(goal string) bool {
	lower := strings.ToLower(goal)
	for _, kw := range luckyGoalKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// luckySearchURL builds the Google "I'm feeling lucky" redirect URL for a
// query extracted from the goal text between single quotes, e.g.
// `Safari에서 구글 검색: 'AAPL stock price' 첫 번째 결과 열기`.
func luckySearchURL(goal string) (string, bool) {
	start := strings.Index(goal, "'")
	if start < 0 {
		return "", false
	}
	end := strings.Index(goal[start+1:], "'")
	if end < 0 {
		return "", false
	}
	query := goal[start+1 : start+1+end]
	if query == "" {
		return "", false
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(query) + "&btnI=1", true
}

// isRedirectAlert reports whether observation text names a browser redirect
// confirmation dialog ("Leave site?"-style prompts) that should be accepted
// by extracting and navigating to its target rather than clicked through.
func isRedirectAlert(observation string) bool {
	lower := strings.ToLower(observation)
	return strings.Contains(lower, "redirect") || strings.Contains(lower, "leave this site") || strings.Contains(lower, "leave site")
}

// extractRedirectTarget pulls the first http(s) URL out of observation text,
// the concrete target of a browser redirect alert.
func extractRedirectTarget(observation string) (string, bool) {
	for _, scheme := range []string{"https://", "http://"} {
		if i := strings.Index(observation, scheme); i >= 0 {
			rest := observation[i:]
			end := strings.IndexAny(rest, " \t\n\"')")
			if end < 0 {
				end = len(rest)
			}
			return rest[:end], true
		}
	}
	return "", false
}

// checkpointHint is a named mid-goal state with a deterministic forced
// action, which matchCheckpoint returns once the frontmost app and prior
// history match.
type checkpointHint struct {
	Name      string
	AppMatch  string
	Matches   func(history []string) bool
	Action    coreapi.Action
}

// mailComposeCheckpoint is the concrete checkpoint named in §4.5 step 2(c):
// when Mail is frontmost and the history mentions "compose", its forced
// action pastes the clipboard. The step loop in planner.go does not call
// matchCheckpoint, so a run never applies this checkpoint.
var mailComposeCheckpoint = checkpointHint{
	Name:     "mail_compose_open",
	AppMatch: "Mail",
	Matches: func(history []string) bool {
		for _, h := range history {
			if strings.Contains(h, "compose") {
				return true
			}
		}
		return false
	},
	Action: coreapi.Action{Type: coreapi.ActionPaste},
}

// matchCheckpoint returns the forced action for the first checkpoint whose
// AppMatch equals frontApp and whose Matches predicate is satisfied.
func matchCheckpoint(frontApp string, history []string) (coreapi.Action, bool) {
	for _, cp := range []checkpointHint{mailComposeCheckpoint} {
		if cp.AppMatch == frontApp && cp.Matches(history) {
			return cp.Action, true
		}
	}
	return coreapi.Action{}, false
}

// rewriteFilesTxtListing rewrites an instruction mentioning files.txt and
// "list" to the platform-safe listing shell command and its verify set
// (scenario 5), so the Planner never hands the LLM's raw phrasing straight
// to the shell.
func rewriteFilesTxtListing(instruction string) (cmd string, verifies []string, matched bool) {
	lower := strings.ToLower(instruction)
	if !strings.Contains(lower, "files.txt") || !strings.Contains(lower, "list") {
		return "", nil, false
	}
	return "ls -1 | grep -v '^files.txt$' | sort > files.txt",
		[]string{
			"files_exist:files.txt",
			"files_not_empty:files.txt",
			"files_no_hidden:files.txt",
			"files_match_listing:files.txt",
		}, true
}
