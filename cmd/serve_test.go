package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shutdown must run on a fresh context, not the already-canceled signal
// context, so requests in flight at shutdown time finish draining.
func TestDrainOnCancel_LetsInFlightRequestsFinish(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})}
	go srv.Serve(ln) //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drainOnCancel(ctx, srv, 5*time.Second)
	}()

	type result struct {
		code int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			resCh <- result{err: err}
			return
		}
		resp.Body.Close() //nolint:errcheck
		resCh <- result{code: resp.StatusCode}
	}()

	<-started
	cancel()

	select {
	case <-drained:
		t.Fatal("shutdown returned while a request was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return after the last request finished")
	}

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.code)
}
