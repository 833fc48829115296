package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := listingsTotal
	Init()
	require.Same(t, first, listingsTotal)
}

func TestObserveListing(t *testing.T) {
	Init()
	before := testutil.ToFloat64(listingsTotal.WithLabelValues(OutcomeDropped))
	ObserveListing(OutcomeDropped)
	ObserveListing(OutcomeDropped)
	require.InDelta(t, before+2, testutil.ToFloat64(listingsTotal.WithLabelValues(OutcomeDropped)), 0)
}

func TestObserveAttempt(t *testing.T) {
	Init()
	attempts := testutil.ToFloat64(attemptsTotal)
	renders := testutil.ToFloat64(attemptFailuresTotal.WithLabelValues("render"))

	ObserveAttempt("")
	ObserveAttempt("render")

	require.InDelta(t, attempts+2, testutil.ToFloat64(attemptsTotal), 0)
	require.InDelta(t, renders+1, testutil.ToFloat64(attemptFailuresTotal.WithLabelValues("render")), 0)
}

func TestObservePersistedAndRun(t *testing.T) {
	Init()
	rows := testutil.ToFloat64(recordsPersistedTotal)
	blobs := testutil.ToFloat64(blobsPersistedTotal)

	ObservePersisted(3, 6)
	finished := time.Unix(1700000000, 0)
	ObserveRun(true, 90*time.Second, finished)

	require.InDelta(t, rows+3, testutil.ToFloat64(recordsPersistedTotal), 0)
	require.InDelta(t, blobs+6, testutil.ToFloat64(blobsPersistedTotal), 0)
	require.InDelta(t, 90, testutil.ToFloat64(runDurationSeconds), 0)
	require.InDelta(t, 1700000000, testutil.ToFloat64(lastSuccessTimestamp), 0)
}

func TestPusherPushesDefaultRegistry(t *testing.T) {
	Init()
	ObserveListing(OutcomeNew)

	type received struct {
		method string
		path   string
		body   string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		select {
		case got <- received{method: r.Method, path: r.URL.Path, body: string(body)}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewPusher(srv.URL, "jobscraper", "usrse")
	require.NoError(t, err)
	require.NoError(t, p.Push(context.Background()))

	req := <-got
	require.Equal(t, http.MethodPut, req.method)
	require.Equal(t, "/metrics/job/jobscraper/instance/usrse", req.path)
	require.True(t, strings.Contains(req.body, "jobscraper_listings_total"))
}

func TestPusherSurfacesGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewPusher(srv.URL, "jobscraper", "")
	require.NoError(t, err)
	require.Error(t, p.Push(context.Background()))
}

func TestNewPusherValidation(t *testing.T) {
	_, err := NewPusher("", "job", "")
	require.Error(t, err)
	_, err = NewPusher("http://localhost:9091", "", "")
	require.Error(t, err)
}
