package feed

import (
	"context"
	"errors"
	"testing"
)

type stubInteractions struct {
	liked      map[string]bool
	retweeted  map[string]bool
	bookmarked map[string]bool
	err        error
	calls      int
}

func (s *stubInteractions) LikedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	s.calls++
	return s.liked, s.err
}

func (s *stubInteractions) RetweetedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	s.calls++
	return s.retweeted, s.err
}

func (s *stubInteractions) BookmarkedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	s.calls++
	return s.bookmarked, s.err
}

func TestResolver_Resolve(t *testing.T) {
	store := &stubInteractions{
		liked:      map[string]bool{"p1": true},
		retweeted:  map[string]bool{"p2": true},
		bookmarked: map[string]bool{"p1": true, "p3": true},
	}
	resolver := NewResolver(store)

	states, err := resolver.Resolve(context.Background(), "viewer-1", []string{"p1", "p2", "p3"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p1 := states.For("p1")
	if !p1.IsLiked || p1.IsRetweeted || !p1.IsBookmarked {
		t.Errorf("Unexpected state for p1: %+v", p1)
	}
	p2 := states.For("p2")
	if p2.IsLiked || !p2.IsRetweeted || p2.IsBookmarked {
		t.Errorf("Unexpected state for p2: %+v", p2)
	}
}

func TestResolver_Resolve_AnonymousViewerSkipsStore(t *testing.T) {
	store := &stubInteractions{}
	resolver := NewResolver(store)

	states, err := resolver.Resolve(context.Background(), "", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.calls != 0 {
		t.Errorf("Expected no store queries for anonymous viewer, got %d", store.calls)
	}

	state := states.For("p1")
	if state.IsLiked || state.IsRetweeted || state.IsBookmarked {
		t.Errorf("Expected all flags false for anonymous viewer, got %+v", state)
	}
}

func TestResolver_Resolve_PropagatesQueryError(t *testing.T) {
	store := &stubInteractions{err: errors.New("connection refused")}
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "viewer-1", []string{"p1"})
	if err == nil {
		t.Fatal("Expected membership query error to propagate, got nil")
	}
}

func TestViewerStates_Apply_KeysReshareByOriginal(t *testing.T) {
	states := &ViewerStates{
		Liked:      map[string]bool{"original": true},
		Retweeted:  map[string]bool{},
		Bookmarked: map[string]bool{},
	}

	// A reshare slot carries the original's id, so the original's state
	// must land on it.
	items := []Item{
		{ID: "original", RetweetedBy: &Author{ID: "booster"}},
		{ID: "other"},
	}

	states.Apply(items)

	if !items[0].ViewerState.IsLiked {
		t.Error("Expected reshare slot to carry the original's liked state")
	}
	if items[1].ViewerState.IsLiked {
		t.Error("Expected unrelated item to stay unliked")
	}
}
