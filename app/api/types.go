package api

import (
	"time"

	"github.com/lysyi3m/feed-sync/app/database"
	"github.com/lysyi3m/feed-sync/app/engine"
	"github.com/lysyi3m/feed-sync/app/feed"
)

type Handler struct {
	registry  *engine.Registry
	variants  *feed.VariantCache
	postRepo  database.PostRepository
	startedAt time.Time
}

// FeedResponse is the view surface handed to UI clients: the rendered item
// list plus the load/exhaustion/error flags driving the scroll behavior.
type FeedResponse struct {
	Variant feed.Variant `json:"variant"`
	Items   []feed.Item  `json:"items"`
	Loading bool         `json:"loading"`
	HasMore bool         `json:"has_more"`
	Error   string       `json:"error,omitempty"`
}

func feedResponse(f *engine.Feed) FeedResponse {
	snap := f.Snapshot()

	response := FeedResponse{
		Variant: f.Variant(),
		Items:   snap.Items,
		Loading: snap.Loading,
		HasMore: snap.HasMore,
	}
	if snap.Err != nil {
		response.Error = snap.Err.Error()
	}
	if response.Items == nil {
		response.Items = []feed.Item{}
	}
	return response
}
