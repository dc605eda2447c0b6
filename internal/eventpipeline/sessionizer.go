package eventpipeline

import (
	"time"

	"github.com/google/uuid"

	"surf-core/internal/coreapi"
)

// sessionize partitions a time-ordered slice of Events into maximal
// contiguous runs with inter-event idle no greater than idleCutoff (§3, §8
// invariant on Session). events must already be sorted by TS ascending.
func sessionize(events []coreapi.Event, idleCutoff time.Duration) []coreapi.Session {
	if len(events) == 0 {
		return nil
	}

	var sessions []coreapi.Session
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].TS.Sub(events[i-1].TS) > idleCutoff {
			sessions = append(sessions, summarize(events[start:i]))
			start = i
		}
	}
	return sessions
}

func summarize(events []coreapi.Event) coreapi.Session {
	first, last := events[0], events[len(events)-1]

	appCounts := map[string]int{}
	var keyTypes []string
	seenTypes := map[string]bool{}
	var resources []coreapi.Resource
	seenResources := map[string]bool{}

	for _, e := range events {
		if e.App != "" {
			appCounts[e.App]++
		}
		if !seenTypes[e.EventType] {
			seenTypes[e.EventType] = true
			keyTypes = append(keyTypes, e.EventType)
		}
		if e.Resource != nil {
			key := e.Resource.Type + ":" + e.Resource.ID
			if !seenResources[key] {
				seenResources[key] = true
				resources = append(resources, *e.Resource)
			}
		}
	}

	topApp := ""
	best := 0
	for app, n := range appCounts {
		if n > best {
			best, topApp = n, app
		}
	}

	return coreapi.Session{
		SessionID: uuid.NewString(),
		StartTS:   first.TS,
		EndTS:     last.TS,
		Duration:  last.TS.Sub(first.TS),
		Summary: coreapi.SessionSummary{
			TopApp:        topApp,
			EventCount:    len(events),
			KeyEventTypes: keyTypes,
			Resources:     resources,
		},
	}
}
