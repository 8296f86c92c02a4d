package session

import (
	"testing"
	"time"

	"github.com/lysyi3m/feed-sync/app/feed"
)

func TestRecordExpired(t *testing.T) {
	ttl := 2 * time.Minute
	writtenAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	record := NewRecord([]feed.Item{{ID: "a"}}, 20, writtenAt)

	// Read 119 seconds after the write: still honored
	if record.Expired(writtenAt.Add(119*time.Second), ttl) {
		t.Error("Record read at 119s should be honored with a 120s TTL")
	}

	// Read 121 seconds after the write: treated as absent
	if !record.Expired(writtenAt.Add(121*time.Second), ttl) {
		t.Error("Record read at 121s should be expired with a 120s TTL")
	}
}

func TestRecordExpired_AtBoundary(t *testing.T) {
	ttl := 2 * time.Minute
	writtenAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	record := NewRecord(nil, 0, writtenAt)

	if record.Expired(writtenAt.Add(ttl), ttl) {
		t.Error("Record exactly at TTL age should still be honored")
	}
}

func TestNewRecordCarriesSnapshot(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	items := []feed.Item{{ID: "a"}, {ID: "b"}}

	record := NewRecord(items, 27, now)

	if len(record.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(record.Items))
	}
	if record.Cursor != 27 {
		t.Errorf("Expected cursor 27, got %d", record.Cursor)
	}
	if record.Timestamp != now.UnixMilli() {
		t.Errorf("Expected timestamp %d, got %d", now.UnixMilli(), record.Timestamp)
	}
}

func TestRecordKey(t *testing.T) {
	key := recordKey("viewer-1", feed.VariantForYou.CacheKey())
	if key != "feedsync:session:viewer-1:for-you-feed" {
		t.Errorf("Unexpected key: %s", key)
	}

	// An unauthenticated viewer still gets a stable key
	key = recordKey("", feed.VariantFollowing.CacheKey())
	if key != "feedsync:session:anonymous:following-feed" {
		t.Errorf("Unexpected anonymous key: %s", key)
	}
}

func TestNewCache_InvalidAddr(t *testing.T) {
	_, err := NewCache("invalid:0", 0, 2*time.Minute)
	if err == nil {
		t.Error("Expected error for unreachable Redis address")
	}
}
