package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-planner/internal/broadcast"
	"github.com/iliyamo/event-planner/internal/lock"
	"github.com/iliyamo/event-planner/internal/mutate"
	"github.com/iliyamo/event-planner/internal/store"
)

type fixture struct {
	handler *ResourceHandler
	locks   *lock.Manager
	docs    *store.FileStore
	hub     *broadcast.Hub
	echo    *echo.Echo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	locks, err := lock.NewManager(t.TempDir(), time.Millisecond, 200, 0)
	require.NoError(t, err)
	hub := broadcast.NewHub()
	return &fixture{
		handler: NewResourceHandler(docs, mutate.New(locks, docs), hub, nil, nil),
		locks:   locks,
		docs:    docs,
		hub:     hub,
		echo:    echo.New(),
	}
}

func (f *fixture) get(t *testing.T, name string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/resources/"+name, nil)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues(name)
	require.NoError(t, f.handler.Get(c))
	return rec
}

func (f *fixture) put(t *testing.T, name, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/v1/resources/"+name, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues(name)
	require.NoError(t, f.handler.Put(c))
	return rec
}

func TestGetUnknownResource(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "swimlanes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReturnsDefaultWhenAbsent(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "rsvps")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.get(t, "config")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tables":0,"seatsPerTable":0}`, rec.Body.String())
}

func TestPutThenGetRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.put(t, "menu", `["starters","mains","desserts"]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Resource string          `json:"resource"`
		Value    json.RawMessage `json:"value"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "menu", resp.Resource)
	assert.JSONEq(t, `["starters","mains","desserts"]`, string(resp.Value))

	got := f.get(t, "menu")
	assert.JSONEq(t, `["starters","mains","desserts"]`, got.Body.String())
}

func TestPutMalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := f.put(t, "menu", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// rsvps must decode as a list of records, not merely be valid JSON.
	rec = f.put(t, "rsvps", `{"id":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No lock side effects: the rejected PUT never touched the lock.
	tok, err := f.locks.Acquire("rsvps")
	require.NoError(t, err)
	f.locks.Release(tok)
}

func TestPutRejectsNullRSVPList(t *testing.T) {
	f := newFixture(t)

	rec := f.put(t, "rsvps", `null`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The contract is "a list": the default survives the rejected write.
	got := f.get(t, "rsvps")
	assert.JSONEq(t, `[]`, got.Body.String())
}

func TestPutPreservesUnmodeledRecordFields(t *testing.T) {
	f := newFixture(t)

	body := `[{"id":"1","name":"Ada","email":"a@x.com","table":3,"seat":5,"plusOne":"Charles","notes":"near the band"}]`
	rec := f.put(t, "rsvps", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got := f.get(t, "rsvps")
	assert.JSONEq(t, body, got.Body.String())
}

func TestPutUnknownResource(t *testing.T) {
	f := newFixture(t)
	rec := f.put(t, "swimlanes", `[]`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutSeatConflictNamesOccupant(t *testing.T) {
	f := newFixture(t)

	first := f.put(t, "rsvps", `[{"id":"1","name":"Ada Lovelace","email":"ada@x.com","table":3,"seat":5}]`)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.put(t, "rsvps", `[
		{"id":"1","name":"Ada Lovelace","email":"ada@x.com","table":3,"seat":5},
		{"id":"2","name":"Ben","email":"ben@x.com","table":3,"seat":5}
	]`)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "Ada Lovelace")
	assert.Contains(t, second.Body.String(), "table 3 seat 5")

	// The conflicting batch was rejected wholesale.
	got := f.get(t, "rsvps")
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &stored))
	assert.Len(t, stored, 1)
}

// TestConcurrentSeatClaims races two sessions over the same slot: exactly
// one wins, the other is told who holds the seat.
func TestConcurrentSeatClaims(t *testing.T) {
	f := newFixture(t)

	bodies := []string{
		`[{"id":"1","name":"Ada","email":"a@x.com","table":3,"seat":5}]`,
		`[{"id":"2","name":"Ben","email":"b@x.com","table":3,"seat":5}]`,
	}
	codes := make([]int, len(bodies))
	var wg sync.WaitGroup
	for i, body := range bodies {
		wg.Add(1)
		go func(i int, body string) {
			defer wg.Done()
			codes[i] = f.put(t, "rsvps", body).Code
		}(i, body)
	}
	wg.Wait()

	counts := map[int]int{}
	for _, c := range codes {
		counts[c]++
	}
	assert.Equal(t, 1, counts[http.StatusOK], "exactly one claim must win: %v", codes)
	assert.Equal(t, 1, counts[http.StatusConflict], "the loser must see a conflict: %v", codes)

	got := f.get(t, "rsvps")
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &stored))
	require.Len(t, stored, 1)
}

func TestPutBusyWhenLockHeld(t *testing.T) {
	docs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	locks, err := lock.NewManager(t.TempDir(), time.Millisecond, 3, 0)
	require.NoError(t, err)
	f := &fixture{
		handler: NewResourceHandler(docs, mutate.New(locks, docs), broadcast.NewHub(), nil, nil),
		locks:   locks,
		docs:    docs,
		echo:    echo.New(),
	}

	held, err := locks.Acquire("config")
	require.NoError(t, err)
	defer locks.Release(held)

	rec := f.put(t, "config", `{"tables":10,"seatsPerTable":8}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "busy")
}

func TestPutPublishesCommittedValue(t *testing.T) {
	f := newFixture(t)
	sub := f.hub.Subscribe("menu", 4)
	defer sub.Close()

	rec := f.put(t, "menu", `["a"]`)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case u := <-sub.Updates():
		assert.Equal(t, "menu", u.Resource)
		assert.JSONEq(t, `["a"]`, string(u.Value))
	case <-time.After(time.Second):
		t.Fatal("no broadcast after successful PUT")
	}
}

func TestFailedPutPublishesNothing(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.put(t, "rsvps",
		`[{"id":"1","name":"Ada","email":"a@x.com","table":1,"seat":1}]`).Code)

	sub := f.hub.Subscribe("rsvps", 4)
	defer sub.Close()

	rec := f.put(t, "rsvps", `[{"id":"2","name":"Ben","email":"b@x.com","table":1,"seat":1}]`)
	require.Equal(t, http.StatusConflict, rec.Code)

	select {
	case u := <-sub.Updates():
		t.Fatalf("conflicting PUT must not broadcast: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestManyConcurrentPutsExhaustSomeBudget mirrors heavy contention on one
// resource with a small retry budget: nobody hangs, and with transforms
// slower than the whole budget at least one caller times out with 503.
func TestManyConcurrentPutsExhaustSomeBudget(t *testing.T) {
	docs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	locks, err := lock.NewManager(t.TempDir(), 5*time.Millisecond, 10, 0)
	require.NoError(t, err)
	mut := mutate.New(locks, docs)

	const callers = 25
	codes := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := mut.Mutate("config", json.RawMessage(`{}`), func(json.RawMessage) (json.RawMessage, error) {
				time.Sleep(20 * time.Millisecond) // each hold outlasts a retry tick
				return json.RawMessage(fmt.Sprintf(`{"writer":%d}`, i)), nil
			})
			if err != nil {
				require.ErrorIs(t, err, lock.ErrLockTimeout)
				codes <- http.StatusServiceUnavailable
				return
			}
			codes <- http.StatusOK
		}(i)
	}
	wg.Wait()
	close(codes)

	var ok, busy int
	for c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusServiceUnavailable:
			busy++
		}
	}
	assert.Equal(t, callers, ok+busy)
	assert.GreaterOrEqual(t, ok, 1, "someone must make progress")
	assert.GreaterOrEqual(t, busy, 1, "a late caller must fail fast instead of hanging")
}
