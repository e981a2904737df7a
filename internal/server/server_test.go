package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9000":           ":9000",
		":9000":          ":9000",
		"127.0.0.1:9000": "127.0.0.1:9000",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeAddr(in), "input %q", in)
	}
}

func TestServer_ShutdownEndsRun(t *testing.T) {
	srv := New("127.0.0.1:0", http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	// Give ListenAndServe a moment to bind.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}
