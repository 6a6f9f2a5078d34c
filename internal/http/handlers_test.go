package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/ical-aggregator/internal/persistence"
	"github.com/example/ical-aggregator/internal/persistence/sqlite"
	"github.com/example/ical-aggregator/internal/query"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func seededEvents() []persistence.Event {
	return []persistence.Event{
		{
			Start:       int64Ptr(1704708000),
			End:         int64Ptr(1704715200),
			Summary:     strPtr("Mathematics 101"),
			Location:    strPtr("Amphi A"),
			Description: strPtr("Opening lecture"),
			Raw:         "BEGIN:VEVENT\r\nSUMMARY:Mathematics 101\r\nEND:VEVENT\r\n",
		},
		{
			Start:    int64Ptr(1704726000),
			End:      int64Ptr(1704733200),
			Summary:  strPtr("Physics lab"),
			Location: strPtr("Lab 3"),
			Raw:      "BEGIN:VEVENT\r\nSUMMARY:Physics lab\r\nEND:VEVENT\r\n",
		},
		{
			Start:   int64Ptr(1704618000),
			End:     int64Ptr(1704621600),
			Summary: strPtr("mathematics drill"),
			Raw:     "BEGIN:VEVENT\r\nSUMMARY:mathematics drill\r\nEND:VEVENT\r\n",
		},
	}
}

func newTestServer(t *testing.T, events []persistence.Event) *httptest.Server {
	t.Helper()

	pool, err := sqlite.NewConnectionPool("file:" + filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("failed to open connection pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	repo := sqlite.NewEventRepository(pool)
	ctx := context.Background()
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	if err := repo.ReplaceAll(ctx, events); err != nil {
		t.Fatalf("failed to seed events: %v", err)
	}

	handler := NewEventHandler(
		query.NewEngine(repo, nil),
		query.Options{IngestOffset: time.Hour},
		nil,
	)
	server := httptest.NewServer(NewRouter(RouterConfig{
		Events:     handler,
		Middleware: []func(http.Handler) http.Handler{RequestLogger(nil)},
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, server *httptest.Server, path string) (int, http.Header, []byte) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, resp.Header, body
}

func decodeList(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("failed to decode %q: %v", body, err)
	}
	return list
}

func decodeObject(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		t.Fatalf("failed to decode %q: %v", body, err)
	}
	return obj
}

func TestRootEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil)

	status, headers, body := get(t, server, "/")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if ct := headers.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if len(body) == 0 {
		t.Fatal("expected an informational body")
	}

	if status, _, _ := get(t, server, "/nowhere"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", status)
	}
}

func TestLengthEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, seededEvents())

	status, _, body := get(t, server, "/length")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	obj := decodeObject(t, body)
	if obj["count"] != float64(3) {
		t.Fatalf("expected count 3, got %v", obj["count"])
	}
}

func TestGetByIDEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, seededEvents())

	t.Run("hit returns the full record", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/id/1")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", status, body)
		}
		obj := decodeObject(t, body)
		if obj["summary"] != "Mathematics 101" {
			t.Fatalf("unexpected summary %v", obj["summary"])
		}
		if raw, _ := obj["raw"].(string); !strings.Contains(raw, "BEGIN:VEVENT") {
			t.Fatalf("expected raw payload, got %v", obj["raw"])
		}
	})

	t.Run("miss returns a JSON error", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/id/999")
		if status != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", status)
		}
		obj := decodeObject(t, body)
		if obj["error"] != "Event not found" {
			t.Fatalf("unexpected error body %v", obj)
		}
	})

	t.Run("non-numeric identifier cannot match", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/id/abc")
		if status != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", status, body)
		}
	})

	t.Run("calendar format renders one VEVENT", func(t *testing.T) {
		t.Parallel()
		status, headers, body := get(t, server, "/id/1?format=ics")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", status, body)
		}
		if ct := headers.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("unexpected content type %q", ct)
		}
		document := string(body)
		if strings.Count(document, "BEGIN:VEVENT") != 1 {
			t.Fatalf("expected one VEVENT in:\n%s", document)
		}
		for _, want := range []string{"BEGIN:VCALENDAR", "PRODID:-//ADE/version 6.0", "Mathematics 101"} {
			if !strings.Contains(document, want) {
				t.Errorf("document missing %q", want)
			}
		}
	})

	t.Run("unsupported format is rejected", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/id/1?format=xml")
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", status)
		}
		obj := decodeObject(t, body)
		if obj["error"] != "Invalid format" {
			t.Fatalf("unexpected error body %v", obj)
		}
	})
}

func TestSearchEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, seededEvents())

	t.Run("no filters returns everything", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/search")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if got := len(decodeList(t, body)); got != 3 {
			t.Fatalf("expected 3 events, got %d", got)
		}
	})

	t.Run("substring filter is case-sensitive", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?summary=Math")
		list := decodeList(t, body)
		if len(list) != 1 || list[0]["summary"] != "Mathematics 101" {
			t.Fatalf("expected only the capitalized summary, got %v", list)
		}
	})

	t.Run("regex filter", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?summary=%5E%5BMm%5Dath&summaryMatchType=regex")
		if got := len(decodeList(t, body)); got != 2 {
			t.Fatalf("expected both mathematics events, got %d", got)
		}
	})

	t.Run("regex without a value is rejected", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/search?summaryMatchType=regex")
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", status, body)
		}
		obj := decodeObject(t, body)
		if msg, _ := obj["error"].(string); !strings.Contains(msg, "summary") {
			t.Fatalf("expected the error to name the field, got %v", obj)
		}
	})

	t.Run("every invalid parameter is reported at once", func(t *testing.T) {
		t.Parallel()
		status, _, body := get(t, server, "/search?after=bogus&before=also-bogus")
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", status)
		}
		msg, _ := decodeObject(t, body)["error"].(string)
		if !strings.Contains(msg, "after") || !strings.Contains(msg, "before") {
			t.Fatalf("expected both parameters in the error, got %q", msg)
		}
	})

	t.Run("textual bound matches its numeric equivalent", func(t *testing.T) {
		t.Parallel()
		// 2024-01-08T11:00:00 UTC is 1704711600; the one-hour correction
		// makes the textual form select events starting at or after
		// 1704708000.
		_, _, textual := get(t, server, "/search?after=2024-01-08T11:00:00")
		_, _, numeric := get(t, server, "/search?after=1704708000")
		if len(decodeList(t, textual)) != len(decodeList(t, numeric)) {
			t.Fatalf("textual and numeric bounds disagree: %s vs %s", textual, numeric)
		}
		if got := len(decodeList(t, numeric)); got != 2 {
			t.Fatalf("expected 2 events at or after the bound, got %d", got)
		}
	})

	t.Run("window bounds", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?after=1704700000&before=1704720000")
		list := decodeList(t, body)
		if len(list) != 1 || list[0]["summary"] != "Mathematics 101" {
			t.Fatalf("expected only the windowed event, got %v", list)
		}
	})

	t.Run("sorted results are non-decreasing by start", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?sort=true")
		list := decodeList(t, body)
		if len(list) != 3 {
			t.Fatalf("expected 3 events, got %d", len(list))
		}
		previous := float64(0)
		for i, item := range list {
			start, ok := item["start"].(float64)
			if !ok {
				t.Fatalf("event %d has no numeric start: %v", i, item)
			}
			if start < previous {
				t.Fatalf("results not sorted at index %d: %v", i, list)
			}
			previous = start
		}
	})

	t.Run("raw only projection", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?raw=only")
		list := decodeList(t, body)
		if len(list) != 3 {
			t.Fatalf("expected 3 events, got %d", len(list))
		}
		for _, item := range list {
			if len(item) != 2 {
				t.Fatalf("expected exactly id and raw, got %v", item)
			}
			if _, ok := item["id"]; !ok {
				t.Fatalf("missing id in %v", item)
			}
			if _, ok := item["raw"]; !ok {
				t.Fatalf("missing raw in %v", item)
			}
		}
	})

	t.Run("raw exclude projection", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?raw=exclude")
		for _, item := range decodeList(t, body) {
			if _, present := item["raw"]; present {
				t.Fatalf("raw field present in %v", item)
			}
			if _, present := item["summary"]; !present {
				t.Fatalf("summary missing in %v", item)
			}
		}
	})

	t.Run("calendar format renders all matches without raw", func(t *testing.T) {
		t.Parallel()
		status, headers, body := get(t, server, "/search?format=ical")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if ct := headers.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("unexpected content type %q", ct)
		}
		document := string(body)
		if strings.Count(document, "BEGIN:VEVENT") != 3 {
			t.Fatalf("expected 3 VEVENTs in:\n%s", document)
		}
	})

	t.Run("empty result set is an empty array", func(t *testing.T) {
		t.Parallel()
		_, _, body := get(t, server, "/search?summary=nonexistent")
		if got := strings.TrimSpace(string(body)); got != "[]" {
			t.Fatalf("expected an empty JSON array, got %q", got)
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil)

	resp, err := http.Post(server.URL+"/search", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow: GET, got %q", allow)
	}
}
