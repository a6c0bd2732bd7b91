package modvolc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/observability"
)

const (
	alertLine    = "1609732200 T 2021 1 4 3 50 -86.1619 11.9847 1.25 0 0 0 0 0 0 0 0 0 0 -0.71\n"
	testEndpoint = "http://modvolc.test/cgi-bin/mergeimage"
)

func testQuery() domain.Query {
	site := domain.Site{Name: "Masaya", Lat: 11.9847, Lon: -86.1619, RadiusKm: 1}
	start := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, time.February, 5, 0, 0, 0, 0, time.UTC)
	return domain.NewQuery(site, start, end, domain.DefaultQueryPad)
}

func testClient(baseURL string, retries int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retries:    retries,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestQueryURL(t *testing.T) {
	u := QueryURL(testEndpoint, testQuery())

	assert.Equal(t, testEndpoint+
		"?maptype=alerts&jyear=2021&jday=036&jperiod=35"+
		"&lonmin=-86.3619&latmin=11.7847&lonmax=-85.9619&latmax=12.1847", u)
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "alerts", q.Get("maptype"))
		assert.Equal(t, "2021", q.Get("jyear"))
		assert.Equal(t, "036", q.Get("jday"))
		assert.Equal(t, "35", q.Get("jperiod"))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, alertLine)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	body, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, alertLine, string(body))
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("success")), 1e-9)
}

func TestClient_Fetch_EmptyBodyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body, err := testClient(srv.URL, 0).Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestClient_Fetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "no such script")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Fetch(context.Background(), testQuery())
	require.Error(t, err)

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, err.Error(), "no such script")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Fetch_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, alertLine)
	}))
	defer srv.Close()

	body, err := testClient(srv.URL, 2).Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, alertLine, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1)
	_, err := c.Fetch(context.Background(), testQuery())

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("error")), 1e-9)
}

func TestClient_Fetch_HTMLErrorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<HTML><BODY>Internal error in mergeimage</BODY></HTML>")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Fetch(context.Background(), testQuery())

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, errHTMLBody)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.Fetch(context.Background(), testQuery())
	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
}

func TestClient_Fetch_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL, 5).Fetch(ctx, testQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.As(err, new(*domain.FetchError)))
}

func TestClient_Fetch_TransportErrorRetried(t *testing.T) {
	c := testClient(testEndpoint, 2)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	var calls int
	httpmock.RegisterResponder(http.MethodGet, testEndpoint,
		func(_ *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return httpmock.NewStringResponse(http.StatusOK, alertLine), nil
		})

	body, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, alertLine, string(body))
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestClient_Fetch_TransportErrorExhausted(t *testing.T) {
	c := testClient(testEndpoint, 1)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, testEndpoint,
		httpmock.NewErrorResponder(errors.New("no route to host")))

	_, err := c.Fetch(context.Background(), testQuery())

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "no route to host")
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}
