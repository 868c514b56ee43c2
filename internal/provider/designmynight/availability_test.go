package designmynight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/models"
)

var testDate = time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)

func TestGetAvailability_SingleTypeFiltersReject(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "Dinner",
		[]map[string]any{rawSlot("18:00", "book", true), rawSlot("19:00", "reject", true)},
		detailsPayload("https://x", false, map[string]any{}),
	)
	c := newTestClient(t, fake)

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	s := slots[0]
	assert.Equal(t, "18:00", s.TimeSlot)
	assert.Equal(t, models.FormActionBookingInjection, s.BookingFormAction)
	assert.Equal(t, models.ProviderDesignMyNight, s.Provider)
	assert.Equal(t, "https://x", s.URL)
	assert.Equal(t, "Dinner", s.Tag)
	assert.Equal(t, 90, s.MaxDuration)
	assert.Equal(t, 45, s.MinDuration)
	assert.Equal(t, 2, s.Covers)
	assert.Equal(t, testDate, s.Date)
	assert.False(t, s.RequiredDeposit)
	assert.False(t, s.DOBRequired)
}

func TestGetAvailability_DepositForcesWebsite(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "Dinner",
		[]map[string]any{rawSlot("18:00", "book", true), rawSlot("19:00", "reject", true)},
		detailsPayload("https://x", true, map[string]any{}),
	)
	c := newTestClient(t, fake)

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.FormActionWebsite, slots[0].BookingFormAction)
	assert.True(t, slots[0].RequiredDeposit)
}

func TestGetAvailability_EmptyVenue(t *testing.T) {
	c := newTestClient(t, newFakeProvider())

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestGetAvailability_MergesSortsAndKeepsDuplicates(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "Dinner",
		[]map[string]any{rawSlot("20:00", "book", true), rawSlot("18:30", "enquire", true)},
		detailsPayload("https://dinner", false, map[string]any{"type": "t1"}),
	)
	fake.addType("t2", "Bar",
		[]map[string]any{rawSlot("18:30", "may_enquire", true), rawSlot("17:00", "request", true), rawSlot("21:00", "reject", true)},
		detailsPayload("https://bar", false, map[string]any{"type": "t2"}),
	)
	c := newTestClient(t, fake)

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 4)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	times := make([]string, len(slots))
	for i, s := range slots {
		times[i] = s.TimeSlot
		assert.NotEqual(t, "21:00", s.TimeSlot)
	}
	assert.True(t, sort.StringsAreSorted(times))
	assert.Equal(t, []string{"17:00", "18:30", "18:30", "20:00"}, times)

	tags := map[string]bool{slots[1].Tag: true, slots[2].Tag: true}
	assert.Equal(t, map[string]bool{"Dinner": true, "Bar": true}, tags)

	for _, s := range slots {
		switch s.TimeSlot {
		case "18:30":
			assert.Equal(t, models.FormActionWebsite, s.BookingFormAction)
		default:
			assert.Equal(t, models.FormActionBookingInjection, s.BookingFormAction)
		}
		require.NotNil(t, s.MetaData)
		if s.Tag == "Dinner" {
			assert.Equal(t, "t1", s.MetaData.DesignMyNight["type"])
		} else {
			assert.Equal(t, "t2", s.MetaData.DesignMyNight["type"])
		}
	}
}

func TestGetAvailability_DropsInvalidSlots(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "Dinner",
		[]map[string]any{
			rawSlot("18:00", "book", true),
			rawSlot("", "book", true),
			rawSlot("19:00", "book", false),
			{"time": "20:00", "action": "book"},
			{"time": "21:00", "action": "book", "valid": "yes"},
		},
		detailsPayload("https://x", false, nil),
	)
	c := newTestClient(t, fake)

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "18:00", slots[0].TimeSlot)
	assert.NotNil(t, slots[0].MetaData.DesignMyNight)
}

func TestGetAvailability_SkipsFailedType(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "Dinner",
		[]map[string]any{rawSlot("18:00", "book", true)},
		detailsPayload("https://x", false, map[string]any{}),
	)
	fake.addType("t2", "Bar",
		[]map[string]any{rawSlot("19:00", "book", true)},
		detailsPayload("https://y", false, map[string]any{}),
	)
	fake.failType["t2"] = true
	c := newTestClient(t, fake)

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "Dinner", slots[0].Tag)
}

func TestGetAvailability_SkipsMalformedDetails(t *testing.T) {
	cases := map[string]any{
		"missing payload":       map[string]any{},
		"deposit not bool":      map[string]any{"payload": map[string]any{"depositRequired": "yes"}},
		"details not an object": map[string]any{"payload": map[string]any{"bookingDetails": []any{1, 2}}},
		"link not a string":     map[string]any{"payload": map[string]any{"next": map[string]any{"web": 42}}},
		"payload not an object": map[string]any{"payload": "oops"},
	}

	for name, details := range cases {
		t.Run(name, func(t *testing.T) {
			fake := newFakeProvider()
			fake.addType("good", "Dinner",
				[]map[string]any{rawSlot("18:00", "book", true)},
				detailsPayload("https://x", false, map[string]any{}),
			)
			fake.addType("bad", "Bar", []map[string]any{rawSlot("19:00", "book", true)}, details)
			c := newTestClient(t, fake)

			slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
			require.NoError(t, err)
			require.Len(t, slots, 1)
			assert.Equal(t, "Dinner", slots[0].Tag)
		})
	}
}

func TestGetAvailability_MissingDetailFieldsDefault(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "", []map[string]any{rawSlot("18:00", "book", true)},
		map[string]any{"payload": map[string]any{}},
	)
	c := newTestClient(t, fake)

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "", slots[0].URL)
	assert.False(t, slots[0].RequiredDeposit)
	assert.Equal(t, "t1", slots[0].Tag)
}

func TestGetAvailability_CatalogLookupCachedWithinTTL(t *testing.T) {
	fake := newFakeProvider()
	fake.addType("t1", "Dinner", []map[string]any{rawSlot("18:00", "book", true)},
		detailsPayload("https://x", false, map[string]any{}))
	c := newTestClient(t, fake)

	clock := &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	c.BookingTypes().now = clock.Now
	ctx := context.Background()

	_, err := c.GetAvailability(ctx, "V1", testDate, 2)
	require.NoError(t, err)
	_, err = c.GetAvailability(ctx, "V1", testDate, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.catalogCalls.Load())

	clock.Advance(time.Hour + time.Second)
	_, err = c.GetAvailability(ctx, "V1", testDate, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.catalogCalls.Load())
}

func TestGetAvailability_SendsTypeScopedQueries(t *testing.T) {
	var catalogQuery, slotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/venues/V%201/booking-availability", r.URL.EscapedPath())
		q := r.URL.Query()
		switch q.Get("fields") {
		case "type":
			catalogQuery.Store(q)
			writeJSON(w, http.StatusOK, map[string]any{"payload": map[string]any{"validation": map[string]any{"type": map[string]any{
				"suggestedValues": []any{
					map[string]any{"value": map[string]any{"id": "t1", "name": "Dinner"}},
					map[string]any{"value": map[string]any{"id": "t1", "name": "Dinner again"}},
				},
			}}}})
		case "time":
			slotQuery.Store(q)
			writeJSON(w, http.StatusOK, map[string]any{})
		default:
			writeJSON(w, http.StatusOK, detailsPayload("", false, nil))
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, testLogger())
	defer c.Close()

	_, err := c.GetAvailability(context.Background(), "V 1", testDate, 3)
	require.NoError(t, err)

	cq := catalogQuery.Load().(url.Values)
	assert.Equal(t, "designmynight", cq.Get("source"))
	assert.Equal(t, "undefined", cq.Get("partner_source"))

	sq := slotQuery.Load().(url.Values)
	assert.Equal(t, "t1", sq.Get("type"))
	assert.Equal(t, "3", sq.Get("num_people"))
	assert.Equal(t, "2026-11-20", sq.Get("date"))

	types, err := c.BookingTypes().Get(context.Background(), "V 1")
	require.NoError(t, err)
	assert.Equal(t, []models.BookingType{{ID: "t1", Name: "Dinner"}}, types)
}

func TestGetAvailability_CatalogTimeoutFailsWholeCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:            srv.URL,
		Timeout:            50 * time.Millisecond,
		MaxAttempts:        2,
		BackoffBaseSeconds: 0.001,
	}, testLogger())
	defer c.Close()

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	assert.Nil(t, slots)
	assert.True(t, errors.Is(err, ErrRequestFailed))

	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 2, failed.Attempts)
	assert.Zero(t, c.BookingTypes().Len())
}

func TestGetAvailability_BoundedConcurrency(t *testing.T) {
	fake := newFakeProvider()
	for _, id := range []string{"a", "b", "c", "d"} {
		fake.addType(id, id, []map[string]any{rawSlot("18:00", "book", true)},
			detailsPayload("", false, map[string]any{}))
	}
	c := newTestClient(t, fake, func(o *Options) { o.MaxConcurrent = 1 })

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	assert.Len(t, slots, 4)
}

func TestGetAvailability_SubRequestsRunConcurrently(t *testing.T) {
	typeIDs := []string{"a", "b", "c"}
	want := int32(2 * len(typeIDs))

	// Every per-type sub-request blocks until all of them are in flight.
	var arrived atomic.Int32
	all := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fields") == "type" {
			values := make([]map[string]any, 0, len(typeIDs))
			for _, id := range typeIDs {
				values = append(values, map[string]any{"value": map[string]any{"id": id, "name": id}})
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"payload": map[string]any{"validation": map[string]any{"type": map[string]any{"suggestedValues": values}}},
			})
			return
		}

		if arrived.Add(1) == want {
			close(all)
		}
		select {
		case <-all:
		case <-time.After(time.Second):
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "barrier timeout"})
			return
		}

		if q.Get("fields") == "time" {
			writeJSON(w, http.StatusOK, map[string]any{
				"payload": map[string]any{"validation": map[string]any{"time": map[string]any{
					"suggestedValues": []map[string]any{rawSlot("18:00", "book", true)},
				}}},
			})
			return
		}
		writeJSON(w, http.StatusOK, detailsPayload("https://x/"+q.Get("type"), false, map[string]any{}))
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:            srv.URL,
		Timeout:            2 * time.Second,
		BackoffBaseSeconds: 0.001,
	}, testLogger())
	defer c.Close()

	slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
	require.NoError(t, err)
	assert.Equal(t, want, arrived.Load())
	require.Len(t, slots, len(typeIDs))

	tags := make([]string, 0, len(slots))
	for _, s := range slots {
		tags = append(tags, s.Tag)
	}
	assert.ElementsMatch(t, typeIDs, tags)
}

func TestFormActionFor(t *testing.T) {
	tests := []struct {
		deposit bool
		action  string
		want    models.BookingFormAction
	}{
		{false, "book", models.FormActionBookingInjection},
		{false, "request", models.FormActionBookingInjection},
		{false, "enquire", models.FormActionWebsite},
		{false, "may_enquire", models.FormActionWebsite},
		{true, "book", models.FormActionWebsite},
		{true, "request", models.FormActionWebsite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formActionFor(tt.deposit, tt.action), "deposit=%v action=%s", tt.deposit, tt.action)
	}
}

func TestGetAvailability_CancelledCallerDoesNotFailConcurrentCaller(t *testing.T) {
	fake := newFakeProvider()
	fake.catalogDelay = 300 * time.Millisecond
	fake.addType("t1", "Dinner", []map[string]any{rawSlot("18:00", "book", true)},
		detailsPayload("https://x", false, map[string]any{}))
	c := newTestClient(t, fake)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetAvailability(ctxA, "V1", testDate, 2)
		errA <- err
	}()

	time.Sleep(50 * time.Millisecond)
	type result struct {
		slots []models.AvailabilitySlot
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		slots, err := c.GetAvailability(context.Background(), "V1", testDate, 2)
		resB <- result{slots, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	res := <-resB
	require.NoError(t, res.err)
	require.Len(t, res.slots, 1)
	assert.Equal(t, int32(1), fake.catalogCalls.Load())
}
