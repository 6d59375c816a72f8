package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMonitor struct {
	mu      sync.Mutex
	errs    []error
	tags    []map[string]string
	flushed bool
}

func (c *captureMonitor) CaptureException(err error, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
}

func (c *captureMonitor) Flush(time.Duration) { c.flushed = true }

func install(t *testing.T) *captureMonitor {
	t.Helper()
	m := &captureMonitor{}
	Init(m)
	t.Cleanup(func() { Init(NopMonitor{}) })
	return m
}

func TestCapture(t *testing.T) {
	m := install(t)
	Capture("dispatch", "assign", errors.New("boom"))
	CaptureException(nil, nil)
	require.Len(t, m.errs, 1)
	assert.Equal(t, "dispatch", m.tags[0]["component"])
	assert.Equal(t, "assign", m.tags[0]["op"])
	Flush(time.Second)
	assert.True(t, m.flushed)
}

func TestRecoverCapturesPanic(t *testing.T) {
	m := install(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Recover("health")
		panic("kaboom")
	}()
	<-done
	require.Len(t, m.errs, 1)
	assert.Contains(t, m.errs[0].Error(), "kaboom")
	assert.Equal(t, "true", m.tags[0]["panic"])
}

func TestInitIgnoresNil(t *testing.T) {
	m := install(t)
	Init(nil)
	Capture("x", "y", errors.New("z"))
	assert.Len(t, m.errs, 1)
}
