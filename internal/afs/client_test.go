package afs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

func testPassenger() domain.Passenger {
	return domain.Passenger{
		FirstName:      "Ada",
		LastName:       "Morris",
		Email:          "ada@example.com",
		PassportNumber: "AB1234567",
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, "test-key", 2*time.Second, observability.NewLogger(), WithBackoff(time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingConfig(t *testing.T) {
	logger := observability.NewLogger()

	_, err := NewClient("", "key", time.Second, logger)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "AFS_BASE_URL", cfgErr.Key)

	_, err = NewClient("http://afs.local", "", time.Second, logger)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "AFS_API_KEY", cfgErr.Key)
}

func TestCreateReservation(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"bookingReference": "AFS-42"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ref, err := c.CreateReservation(context.Background(), testPassenger(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, "AFS-42", ref)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Morris", gotBody["lastName"])
	assert.Equal(t, "AB1234567", gotBody["passportNumber"])
}

func TestDo_UpstreamRejectionNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "flight sold out"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateReservation(context.Background(), testPassenger(), []uuid.UUID{uuid.New()})

	var extErr *domain.ExternalBookingError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, http.StatusUnprocessableEntity, extErr.Status)
	assert.Equal(t, "flight sold out", extErr.Message)
	assert.Equal(t, 1, calls, "4xx responses must not be retried")
}

func TestDo_TransportErrorsRetriedThenSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails at the transport level

	c := newTestClient(t, srv.URL)
	err := c.CancelReservation(context.Background(), "AFS-42", "Morris")

	var extErr *domain.ExternalBookingError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 0, extErr.Status)
}

func TestDo_RecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"bookingReference": "AFS-7"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ref, err := c.CreateReservation(context.Background(), testPassenger(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, "AFS-7", ref)
	assert.Equal(t, 2, calls)
}

func TestRetrieveReservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AFS-42", r.URL.Query().Get("bookingReference"))
		assert.Equal(t, "Morris", r.URL.Query().Get("lastName"))
		json.NewEncoder(w).Encode(Reservation{BookingReference: "AFS-42", LastName: "Morris"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.RetrieveReservation(context.Background(), "AFS-42", "Morris")
	require.NoError(t, err)
	assert.Equal(t, "AFS-42", res.BookingReference)
}

func TestSearchFlights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "YYZ", r.URL.Query().Get("origin"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []RemoteItinerary{{Legs: 1}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.SearchFlights(context.Background(), "YYZ", "YVR", "2026-09-10")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Legs)
}
