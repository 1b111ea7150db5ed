package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcules/seedplan/internal/config"
)

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, config.AgentConfig{Listen: "127.0.0.1:0", AllowedDirs: []string{t.TempDir()}})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "serve did not stop")
	}
}

func TestServe_BadListen(t *testing.T) {
	err := serve(context.Background(), config.AgentConfig{Listen: "not-an-address"})
	assert.ErrorContains(t, err, "grpc listen")
}
