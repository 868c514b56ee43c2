package designmynight

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeProvider serves the subset of the booking-availability API used by the client.
type fakeProvider struct {
	mu       sync.Mutex
	types    []map[string]any
	slots    map[string][]map[string]any
	details  map[string]any // per type id: raw payload for fields=next
	failType map[string]bool

	catalogCalls atomic.Int32
	catalogDelay time.Duration

	booking   func(params map[string]any) (int, any)
	bookings  []map[string]any
	cancelled []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		slots:    make(map[string][]map[string]any),
		details:  make(map[string]any),
		failType: make(map[string]bool),
	}
}

func (f *fakeProvider) addType(id, name string, slots []map[string]any, details any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, map[string]any{"value": map[string]any{"id": id, "name": name}})
	f.slots[id] = slots
	f.details[id] = details
}

func (f *fakeProvider) submitted() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.bookings...)
}

func (f *fakeProvider) cancelledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /venues/{venue}/booking-availability", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fields") == "type" && f.catalogDelay > 0 {
			time.Sleep(f.catalogDelay)
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		switch q.Get("fields") {
		case "type":
			f.catalogCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"payload": map[string]any{"validation": map[string]any{"type": map[string]any{"suggestedValues": f.types}}},
			})
		case "time":
			typeID := q.Get("type")
			if f.failType[typeID] {
				writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"payload": map[string]any{"validation": map[string]any{"time": map[string]any{"suggestedValues": f.slots[typeID]}}},
			})
		case "next":
			writeJSON(w, http.StatusOK, f.details[q.Get("type")])
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown fields"})
		}
	})
	mux.HandleFunc("POST /bookings", func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &params)

		f.mu.Lock()
		f.bookings = append(f.bookings, params)
		n := len(f.bookings)
		handle := f.booking
		f.mu.Unlock()

		if handle == nil {
			writeJSON(w, http.StatusOK, bookingPayload("confirmed", n))
			return
		}
		status, resp := handle(params)
		writeJSON(w, status, resp)
	})
	mux.HandleFunc("POST /cancel-booking/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		f.mu.Lock()
		f.cancelled = append(f.cancelled, id)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"payload": map[string]any{"success": true}})
	})
	return mux
}

func bookingPayload(status string, n int) map[string]any {
	return map[string]any{
		"payload": map[string]any{
			"bookingStatus": status,
			"venue":         map[string]any{"title": "The Test Bar"},
			"booking": map[string]any{
				"id":           "bk-" + strconv.Itoa(n),
				"date":         "2026-11-20T00:00:00.000Z",
				"time":         "19:30",
				"num_people":   4,
				"created_date": "2026-10-16T12:00:00Z",
				"type":         map[string]any{"name": "Dinner"},
				"email":        "guest@example.com",
				"venue_id":     "V1",
				"created_by":   "partner-1",
				"reference":    "REF123",
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func rawSlot(t, action string, valid bool) map[string]any {
	return map[string]any{"time": t, "action": action, "valid": valid}
}

func detailsPayload(link string, deposit bool, bag map[string]any) map[string]any {
	return map[string]any{
		"payload": map[string]any{
			"next":            map[string]any{"web": link},
			"depositRequired": deposit,
			"bookingDetails":  bag,
		},
	}
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestClient(t *testing.T, fake *fakeProvider, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	opts := Options{
		BaseURL:            srv.URL,
		Timeout:            2 * time.Second,
		BackoffBaseSeconds: 0.001,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c := NewClient(opts, testLogger())
	t.Cleanup(c.Close)
	return c
}
