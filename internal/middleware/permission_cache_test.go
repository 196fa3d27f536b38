package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	codes map[string][]string
	err   error
}

func (l *countingLoader) load(_ context.Context, roleID string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[roleID]++
	if l.err != nil {
		return nil, l.err
	}
	return l.codes[roleID], nil
}

func TestPermissionCacheHitsAfterFirstLoad(t *testing.T) {
	l := &countingLoader{codes: map[string][]string{"r": {"Invoice.view"}}}
	c := NewPermissionCache(l.load, 4, time.Minute)

	for i := 0; i < 3; i++ {
		codes, err := c.Codes(context.Background(), "r")
		require.NoError(t, err)
		assert.Equal(t, []string{"Invoice.view"}, codes)
	}
	assert.Equal(t, 1, l.calls["r"])
}

func TestPermissionCachePurge(t *testing.T) {
	l := &countingLoader{codes: map[string][]string{"a": {"Leads.view"}, "b": {"Quotation.edit"}}}
	c := NewPermissionCache(l.load, 4, time.Minute)
	ctx := context.Background()

	_, _ = c.Codes(ctx, "a")
	_, _ = c.Codes(ctx, "b")

	c.Purge("a")
	_, _ = c.Codes(ctx, "a")
	_, _ = c.Codes(ctx, "b")
	assert.Equal(t, 2, l.calls["a"])
	assert.Equal(t, 1, l.calls["b"])

	c.Purge("")
	_, _ = c.Codes(ctx, "b")
	assert.Equal(t, 2, l.calls["b"])
}

func TestPermissionCacheExpires(t *testing.T) {
	l := &countingLoader{codes: map[string][]string{"r": {"Invoice.view"}}}
	c := NewPermissionCache(l.load, 4, 20*time.Millisecond)

	_, _ = c.Codes(context.Background(), "r")
	time.Sleep(60 * time.Millisecond)
	_, _ = c.Codes(context.Background(), "r")
	assert.Equal(t, 2, l.calls["r"])
}

func TestPermissionCacheDoesNotStoreErrors(t *testing.T) {
	l := &countingLoader{err: errors.New("boom")}
	c := NewPermissionCache(l.load, 4, time.Minute)

	_, err := c.Codes(context.Background(), "r")
	assert.Error(t, err)

	l.err = nil
	l.codes = map[string][]string{"r": {"Leads.view"}}
	codes, err := c.Codes(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"Leads.view"}, codes)
}
