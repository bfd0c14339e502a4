package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testClient(serverURL string, maxRetries int) *Client {
	return NewClient(ClientConfig{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	}, nil, testLogger())
}

func writeRecords(w http.ResponseWriter, records []PropertyRecord) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func TestGetPropertyRecordsSendsAuthAndFilters(t *testing.T) {
	var gotKey, gotCity string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotCity = r.URL.Query().Get("city")
		writeRecords(w, []PropertyRecord{{ID: "p-1"}})
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	records, err := client.GetPropertyRecords(context.Background(), Filters{City: "Austin", State: "TX"}, 0)
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Austin", gotCity)
}

func TestGetPropertyRecordsRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeRecords(w, []PropertyRecord{{ID: "p-1"}})
	}))
	defer server.Close()

	client := testClient(server.URL, 3)
	records, err := client.GetPropertyRecords(context.Background(), Filters{City: "Austin"}, 0)
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRetriesExhaustedIsUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(server.URL, 2)
	_, err := client.GetPropertyRecords(context.Background(), Filters{City: "Austin"}, 0)

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientErrorDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := testClient(server.URL, 3)
	_, err := client.GetPropertyByID(context.Background(), "p-1")

	require.Error(t, err)
	assert.False(t, IsUnavailable(err))
	assert.False(t, IsNotFound(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetPropertyByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	_, err := client.GetPropertyByID(context.Background(), "missing")

	assert.True(t, IsNotFound(err))
}

func TestGetPropertyRecordsPages(t *testing.T) {
	// 5 records served 2 at a time.
	all := []PropertyRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}}

	var offsets []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offsets = append(offsets, offset)

		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		if offset >= len(all) {
			writeRecords(w, nil)
			return
		}
		writeRecords(w, all[offset:end])
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		PageSize:   2,
		RetryDelay: time.Millisecond,
	}, nil, testLogger())

	records, err := client.GetPropertyRecords(context.Background(), Filters{City: "Austin"}, 0)
	require.NoError(t, err)

	assert.Len(t, records, 5)
	assert.Equal(t, []int{0, 2, 4}, offsets)
}

func TestGetPropertyRecordsCapAppliesToShortPage(t *testing.T) {
	// The provider hands back everything it has regardless of the
	// requested limit.
	all := []PropertyRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}}

	var limits []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		limits = append(limits, limit)
		writeRecords(w, all)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		PageSize:   50,
		RetryDelay: time.Millisecond,
	}, nil, testLogger())

	records, err := client.GetPropertyRecords(context.Background(), Filters{City: "Austin"}, 3)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "3", records[2].ID)
	assert.Equal(t, []int{3}, limits)
}

func TestGetPropertyRecordsEmptyResultIs404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The provider answers 404 when nothing matches.
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	records, err := client.GetPropertyRecords(context.Background(), Filters{City: "Nowhere"}, 0)

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetValuationPartialResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/avm/value":
			json.NewEncoder(w).Encode(Estimate{Price: 425000, PriceLow: 400000, PriceHigh: 450000})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	v := client.GetValuation(context.Background(), "100 Congress Ave", "Austin", "TX")

	require.NoError(t, v.ValueErr)
	require.NotNil(t, v.Value)
	assert.Equal(t, 425000, v.Value.Price)

	require.Error(t, v.RentErr)
	assert.True(t, IsUnavailable(v.RentErr))
	assert.Nil(t, v.Rent)
}

func TestContextCancellationStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		MaxRetries: 5,
		RetryDelay: time.Second,
	}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := client.GetPropertyByID(ctx, "p-1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
