package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingServer struct {
	name     string
	startErr error
	log      *[]string
	mu       *sync.Mutex
}

func (s *recordingServer) Name() string { return s.name }

func (s *recordingServer) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start:"+s.name)
	return nil
}

func (s *recordingServer) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.log = append(*s.log, "stop:"+s.name)
	return nil
}

func newServers(names ...string) ([]*recordingServer, *[]string) {
	var log []string
	mu := &sync.Mutex{}
	out := make([]*recordingServer, 0, len(names))
	for _, n := range names {
		out = append(out, &recordingServer{name: n, log: &log, mu: mu})
	}
	return out, &log
}

func TestManager_RunStopsInReverseOrder(t *testing.T) {
	servers, log := newServers("watcher", "http")
	m := NewManager(time.Second)
	for _, s := range servers {
		m.AddServer(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool {
		servers[0].mu.Lock()
		defer servers[0].mu.Unlock()
		return len(*log) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"start:watcher", "start:http", "stop:http", "stop:watcher"}, *log)
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	servers, log := newServers("a", "b", "c")
	servers[2].startErr = errors.New("bind failed")

	m := NewManager(time.Second)
	for _, s := range servers {
		m.AddServer(s)
	}

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c")
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, *log)

	// 回滚后可以安全再次 Stop
	assert.NoError(t, m.Stop(context.Background()))
}
