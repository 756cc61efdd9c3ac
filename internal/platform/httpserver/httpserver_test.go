package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		srv := New(":0", http.NotFoundHandler())
		assert.Equal(t, 15*time.Second, srv.ReadTimeout)
		assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
		assert.Equal(t, 1<<16, srv.MaxHeaderBytes)
	})

	t.Run("overrides timeouts", func(t *testing.T) {
		srv := New(":0", http.NotFoundHandler(), WithTimeouts(time.Second, 0))
		assert.Equal(t, time.Second, srv.ReadTimeout)
		assert.Equal(t, 15*time.Second, srv.WriteTimeout)
	})
}

func TestRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("serves until cancelled", func(t *testing.T) {
		addr := freeAddr(t)
		srv := New(addr, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- Run(ctx, srv, logger, time.Second) }()

		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + addr)
			if err != nil {
				return false
			}
			resp.Body.Close()
			return resp.StatusCode == http.StatusTeapot
		}, 5*time.Second, 20*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("reports listen errors", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		srv := New(ln.Addr().String(), http.NotFoundHandler())
		err = Run(context.Background(), srv, logger, time.Second)
		assert.Error(t, err)
	})
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}
