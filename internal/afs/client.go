// Package afs is the client for the remote airline reservation service,
// the system of record for flight ticketing.
package afs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

const defaultMaxRetries = 3

type Client struct {
	baseURL    string
	apiKey     string
	httpc      *http.Client
	logger     observability.Logger
	maxRetries int
	backoff    time.Duration
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpc = c
	}
}

func WithBackoff(d time.Duration) Option {
	return func(cl *Client) {
		cl.backoff = d
	}
}

// NewClient fails with a ConfigurationError when the base URL or API key is
// absent; a half-configured client must never reach a handler.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger observability.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, &domain.ConfigurationError{Key: "AFS_BASE_URL"}
	}
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Key: "AFS_API_KEY"}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpc:      &http.Client{Timeout: timeout},
		logger:     logger,
		maxRetries: defaultMaxRetries,
		backoff:    250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type Reservation struct {
	BookingReference string       `json:"bookingReference"`
	FirstName        string       `json:"firstName"`
	LastName         string       `json:"lastName"`
	Flights          []FlightInfo `json:"flights"`
}

type FlightInfo struct {
	ID            uuid.UUID `json:"id"`
	FlightNumber  string    `json:"flightNumber"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
}

type RemoteItinerary struct {
	Legs    int          `json:"legs"`
	Flights []FlightInfo `json:"flights"`
}

// CreateReservation books the given legs remotely and returns the booking
// reference issued by the service.
func (c *Client) CreateReservation(ctx context.Context, p domain.Passenger, flightIDs []uuid.UUID) (string, error) {
	body := map[string]interface{}{
		"firstName":      p.FirstName,
		"lastName":       p.LastName,
		"email":          p.Email,
		"passportNumber": p.PassportNumber,
		"flightIds":      flightIDs,
	}
	var res Reservation
	if err := c.do(ctx, http.MethodPost, "/bookings", body, &res); err != nil {
		return "", err
	}
	return res.BookingReference, nil
}

func (c *Client) CancelReservation(ctx context.Context, reference, lastName string) error {
	body := map[string]interface{}{
		"bookingReference": reference,
		"lastName":         lastName,
	}
	return c.do(ctx, http.MethodPost, "/bookings/cancel", body, nil)
}

func (c *Client) RetrieveReservation(ctx context.Context, reference, lastName string) (*Reservation, error) {
	q := url.Values{}
	q.Set("bookingReference", reference)
	q.Set("lastName", lastName)
	var res Reservation
	if err := c.do(ctx, http.MethodGet, "/bookings/retrieve?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchFlights queries the remote flight inventory directly.
func (c *Client) SearchFlights(ctx context.Context, origin, destination, date string) ([]RemoteItinerary, error) {
	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	q.Set("date", date)
	var res struct {
		Results []RemoteItinerary `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/flights?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

// do sends one request. Transport-level failures are retried with backoff;
// any HTTP response, success or not, ends the retry loop. Non-2xx responses
// become ExternalBookingError with the upstream status and message.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.AFSRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * c.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("x-api-key", c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("attempt", attempt+1).Warn("reservation service request failed")
			continue
		}
		return c.decode(resp, out)
	}

	return &domain.ExternalBookingError{Status: 0, Message: fmt.Sprintf("after %d attempts: %v", c.maxRetries, lastErr)}
}

func (c *Client) decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := upstreamMessage(data)
		return &domain.ExternalBookingError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func upstreamMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}
