package httpapi

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"surf-core/internal/coreapi"
)

type ingestResponse struct {
	Received  int `json:"received"`
	Processed int `json:"processed"`
}

// postEvents ingests one Event or an Event array (§6 POST /events). Each
// event is assigned an id/timestamp if missing, then handed to the Event
// Pipeline's non-blocking Ingest — the interactive path never blocks on
// ingestion (§4.6).
func (h *handlers) postEvents(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}

	events, err := parseEventOrEvents(body)
	if err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}

	processed := 0
	for _, ev := range events {
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		if err := h.core.Pipeline.Ingest(ev); err == nil {
			processed++
		}
	}
	ctx.JSON(200, ingestResponse{Received: len(events), Processed: processed})
}

func parseEventOrEvents(body []byte) ([]coreapi.Event, error) {
	var arr []coreapi.Event
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, nil
	}
	var single coreapi.Event
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []coreapi.Event{single}, nil
}
