package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventlens/eventlens/internal/cache"
	"github.com/eventlens/eventlens/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStreamServer serves the given NDJSON body for every request and counts
// how many times it was hit.
func newStreamServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("Authorization header = %q, want %q", got, "test-key")
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func platformConfig(url string) config.PlatformConfig {
	return config.PlatformConfig{
		APIKey:        "test-key",
		AnalyticsURL:  url,
		StreamTimeout: 10 * time.Second,
	}
}

const leadStreamBody = `{"event":"connection_create","user_id":"u1","properties":{"scanned":true}}
{"event":"connection_create","user_id":"u2","properties":{"scanned":true}}
{"event":"planning_scan_create","user_id":"u1"}
{"event":"planning_scan_create","user_id":"u2"}
{"event":"planning_scan_create","user_id":"u3"}
{"event":"contact_connection_create","user_id":"u1","properties":{"scanned":true}}
{"event":"message_create","user_id":"u1"}
{"event":"message_create","user_id":"u2"}
{"event":"message_create","user_id":"u1"}
{"event":"message_create","user_id":"u4"}
{"event":"exhibitor_show","user_id":"u3"}
{"event":"exhibitor_show","user_id":"u4"}
not json at all
{"event":"some_future_action","user_id":"u9"}
`

func TestLeadAggregator(t *testing.T) {
	var hits atomic.Int32
	srv := newStreamServer(t, leadStreamBody, &hits)

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewLeadAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())

	window := Window{TimeGT: "2024-01-01T00:00:00.000Z"}
	summary, err := agg.Aggregate(context.Background(), "ev-1", window, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// Scanned connections count as both their base category and badge scans.
	if summary.BadgesScanned != 6 {
		t.Errorf("BadgesScanned = %d, want 6", summary.BadgesScanned)
	}
	if summary.ConnectionsMade != 2 {
		t.Errorf("ConnectionsMade = %d, want 2", summary.ConnectionsMade)
	}
	if summary.BusinessCardsScanned != 1 {
		t.Errorf("BusinessCardsScanned = %d, want 1", summary.BusinessCardsScanned)
	}
	if summary.MessagesExchanged != 4 {
		t.Errorf("MessagesExchanged = %d, want 4", summary.MessagesExchanged)
	}
	if summary.ExhibitorViews != 2 {
		t.Errorf("ExhibitorViews = %d, want 2", summary.ExhibitorViews)
	}

	// badges(6) + cards(1) + connections(2) + views(2) + bookmarks(0)
	if summary.TotalLeads != 11 {
		t.Errorf("TotalLeads = %d, want 11", summary.TotalLeads)
	}

	if summary.RawCount != 13 {
		t.Errorf("RawCount = %d, want 13", summary.RawCount)
	}
	if summary.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", summary.SkippedLines)
	}

	// Unknown actions land in the breakdown but not in any stat field.
	if summary.Breakdown["some_future_action"] != 1 {
		t.Errorf("Breakdown[some_future_action] = %d, want 1", summary.Breakdown["some_future_action"])
	}
}

func TestLeadAggregatorBookmarkHeavyStream(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, `{"event":"exhibitor_bookmark_create","user_id":"u1"}`)
	}
	lines = append(lines,
		`{"event":"connection_create","user_id":"u2","properties":{"scanned":true}}`,
		`{"event":"connection_create","user_id":"u3"}`,
		`{"event":"connection_create","user_id":"u4"}`,
		`{"event":"meeting_create","user_id":"u2"}`,
		`{"event":"meeting_create","user_id":"u3"}`,
	)

	var hits atomic.Int32
	srv := newStreamServer(t, strings.Join(lines, "\n")+"\n", &hits)

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewLeadAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())
	summary, err := agg.Aggregate(context.Background(), "ev-1", Window{TimeGT: "2024-01-01T00:00:00.000Z"}, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if summary.ExhibitorBookmarks != 10 {
		t.Errorf("ExhibitorBookmarks = %d, want 10", summary.ExhibitorBookmarks)
	}
	if summary.ConnectionsMade != 3 {
		t.Errorf("ConnectionsMade = %d, want 3", summary.ConnectionsMade)
	}
	if summary.BadgesScanned != 1 {
		t.Errorf("BadgesScanned = %d, want 1", summary.BadgesScanned)
	}
	if summary.MeetingsCreated != 2 {
		t.Errorf("MeetingsCreated = %d, want 2", summary.MeetingsCreated)
	}
	// 10 bookmarks + 3 connections + 1 badge; meetings excluded.
	if summary.TotalLeads != 14 {
		t.Errorf("TotalLeads = %d, want 14", summary.TotalLeads)
	}
}

func TestLeadAggregatorCacheHit(t *testing.T) {
	var hits atomic.Int32
	srv := newStreamServer(t, leadStreamBody, &hits)

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewLeadAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())
	window := Window{TimeGT: "2024-01-01T00:00:00.000Z"}

	first, err := agg.Aggregate(context.Background(), "ev-1", window, Options{UseCache: true})
	if err != nil {
		t.Fatalf("first Aggregate: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits after first call = %d, want 1", hits.Load())
	}

	second, err := agg.Aggregate(context.Background(), "ev-1", window, Options{UseCache: true})
	if err != nil {
		t.Fatalf("second Aggregate: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits after cached call = %d, want 1", hits.Load())
	}
	if second.TotalLeads != first.TotalLeads {
		t.Errorf("cached TotalLeads = %d, want %d", second.TotalLeads, first.TotalLeads)
	}

	// Force bypasses the snapshot regardless of age.
	if _, err := agg.Aggregate(context.Background(), "ev-1", window, Options{UseCache: true, Force: true}); err != nil {
		t.Fatalf("forced Aggregate: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits after forced call = %d, want 2", hits.Load())
	}
}

func TestLeadAggregatorZeroActivity(t *testing.T) {
	var hits atomic.Int32
	srv := newStreamServer(t, "", &hits)

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewLeadAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())
	summary, err := agg.Aggregate(context.Background(), "ev-quiet", Window{TimeGT: "2024-01-01T00:00:00.000Z"}, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if summary.TotalLeads != 0 || summary.RawCount != 0 {
		t.Errorf("zero-activity summary = %+v", summary)
	}

	// Even a zero-activity run writes a snapshot.
	snap, err := store.Get(context.Background(), "ev-quiet", cache.KindLeads)
	if err != nil {
		t.Fatalf("Get snapshot: %v", err)
	}
	if snap == nil {
		t.Error("expected snapshot after zero-activity aggregation")
	}
}

func TestLeadAggregatorUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "export unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewLeadAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())
	_, err = agg.Aggregate(context.Background(), "ev-1", Window{TimeGT: "2024-01-01T00:00:00.000Z"}, Options{})
	if err == nil {
		t.Fatal("expected error from upstream 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want upstream status in message", err)
	}
}

const engagementStreamBody = `{"event":"connection_create","user_id":"u1"}
{"event":"message_create","user_id":"u1"}
{"event":"meeting_update","user_id":"u2","properties":{"status":"CONFIRMED"}}
{"event":"meeting_update","user_id":"u3","properties":{"status":"PENDING"}}
{"event":"meeting_participant_update","user_id":"u3","properties":{"status":"ACCEPTED"}}
{"event":"exhibitor_bookmark_create","user_id":"u2"}
{"event":"planning_bookmark_create","user_id":"u4"}
{"event":"planning_scan_create"}
`

func TestEngagementAggregator(t *testing.T) {
	var hits atomic.Int32
	srv := newStreamServer(t, engagementStreamBody, &hits)

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewEngagementAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())
	summary, err := agg.Aggregate(context.Background(), "ev-1", Window{TimeGT: "2024-01-01T00:00:00.000Z"}, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// The record without a user identifier counts toward the total but joins
	// no set.
	if summary.ActiveUsers != 4 {
		t.Errorf("ActiveUsers = %d, want 4", summary.ActiveUsers)
	}
	if summary.UsersConnected != 1 {
		t.Errorf("UsersConnected = %d, want 1", summary.UsersConnected)
	}
	if summary.UsersMeetingsConfirmed != 2 {
		t.Errorf("UsersMeetingsConfirmed = %d, want 2", summary.UsersMeetingsConfirmed)
	}
	if summary.UsersExhibitorBookmarks != 1 {
		t.Errorf("UsersExhibitorBookmarks = %d, want 1", summary.UsersExhibitorBookmarks)
	}
	if summary.UsersSessionBookmarks != 1 {
		t.Errorf("UsersSessionBookmarks = %d, want 1", summary.UsersSessionBookmarks)
	}
	if summary.TotalRecords != 8 {
		t.Errorf("TotalRecords = %d, want 8", summary.TotalRecords)
	}
}

func TestEngagementAggregatorCacheHit(t *testing.T) {
	var hits atomic.Int32
	srv := newStreamServer(t, engagementStreamBody, &hits)

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	agg := NewEngagementAggregator(NewClient(platformConfig(srv.URL), testLogger()), store, time.Hour, testLogger())
	window := Window{TimeGT: "2024-01-01T00:00:00.000Z"}

	if _, err := agg.Aggregate(context.Background(), "ev-1", window, Options{UseCache: true}); err != nil {
		t.Fatalf("first Aggregate: %v", err)
	}
	if _, err := agg.Aggregate(context.Background(), "ev-1", window, Options{UseCache: true}); err != nil {
		t.Fatalf("second Aggregate: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestStreamSkipsOversizedLines(t *testing.T) {
	big := strings.Repeat("x", 2<<20)
	body := `{"event":"connection_create","user_id":"u1"}` + "\n" +
		`{"event":"message_create","user_id":"u2","properties":{"blob":"` + big + `"}}` + "\n" +
		`{"event":"connection_create","user_id":"u3"}` + "\n"

	var hits atomic.Int32
	srv := newStreamServer(t, body, &hits)

	client := NewClient(platformConfig(srv.URL), testLogger())

	var records []Record
	stats, err := client.Stream(context.Background(), StreamRequest{EventIDs: []string{"ev-1"}}, func(rec Record) {
		records = append(records, rec)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	// The oversized line is skipped; records on either side survive.
	if stats.Records != 2 {
		t.Errorf("Records = %d, want 2", stats.Records)
	}
	if stats.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", stats.SkippedLines)
	}
	if len(records) != 2 || records[0].UserID != "u1" || records[1].UserID != "u3" {
		t.Errorf("records = %+v, want u1 and u3", records)
	}
}

func TestStreamOversizedFinalLine(t *testing.T) {
	big := strings.Repeat("y", 2<<20)
	body := `{"event":"connection_create","user_id":"u1"}` + "\n" +
		`{"event":"message_create","properties":{"blob":"` + big + `"}}`

	var hits atomic.Int32
	srv := newStreamServer(t, body, &hits)

	client := NewClient(platformConfig(srv.URL), testLogger())
	stats, err := client.Stream(context.Background(), StreamRequest{EventIDs: []string{"ev-1"}}, func(Record) {})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if stats.Records != 1 {
		t.Errorf("Records = %d, want 1", stats.Records)
	}
	if stats.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", stats.SkippedLines)
	}
}

func TestWindowFromDays(t *testing.T) {
	w := WindowFromDays(730)

	gt, err := time.Parse("2006-01-02T15:04:05.000Z", w.TimeGT)
	if err != nil {
		t.Fatalf("TimeGT %q does not parse: %v", w.TimeGT, err)
	}

	wantAge := 730 * 24 * time.Hour
	age := time.Since(gt)
	if age < wantAge-time.Minute || age > wantAge+time.Minute {
		t.Errorf("window age = %v, want about %v", age, wantAge)
	}

	if w.TimeLT != "" {
		t.Errorf("TimeLT = %q, want empty (up to now)", w.TimeLT)
	}
}
