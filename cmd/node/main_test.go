package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/config"
	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/evbuffer"
	"github.com/dreamware/accessmanager/internal/flushpolicy"
	"github.com/dreamware/accessmanager/internal/graphstore"
)

type noopPersister struct{}

func (noopPersister) Persist(context.Context, []event.Event) error { return nil }

func buildTestManager(t *testing.T) *depfree.Manager {
	t.Helper()
	return depfree.New(graphstore.New())
}

func TestBuildStrategySize(t *testing.T) {
	mgr := buildTestManager(t)
	buf := evbuffer.New(mgr, noopPersister{})

	s, err := buildStrategy(config.FlushConfig{Strategy: "size", DepthThreshold: 10, PollInterval: 1}, buf)
	require.NoError(t, err)
	_, ok := s.(flushpolicy.Size)
	assert.True(t, ok)
}

func TestBuildStrategyUnknown(t *testing.T) {
	mgr := buildTestManager(t)
	buf := evbuffer.New(mgr, noopPersister{})

	_, err := buildStrategy(config.FlushConfig{Strategy: "bogus"}, buf)
	assert.Error(t, err)
}

func TestOpenDriverDefaultsToMemory(t *testing.T) {
	driver, closeFn, err := openDriver(context.Background(), config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, driver)
	assert.Nil(t, closeFn)
}
