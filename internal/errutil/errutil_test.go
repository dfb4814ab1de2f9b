package errutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogIfErrHandlesNil(t *testing.T) {
	assert.NotPanics(t, func() { LogIfErr("context", nil) })
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}

func TestWrapAddsContext(t *testing.T) {
	err := Wrap(errors.New("boom"), "doing the thing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "doing the thing")
	assert.Contains(t, err.Error(), "boom")
}

func TestRecoverCatchesPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Recover("test-goroutine", func() { panic("oh no") })
	})
}

func TestRecoverRunsFnNormally(t *testing.T) {
	ran := false
	Recover("test-goroutine", func() { ran = true })
	assert.True(t, ran)
}

func TestWaitGoStartRunsInBackground(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	var ran bool
	WaitGoStart("test-goroutine", func() {
		ran = true
		wg.Done()
	})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for WaitGoStart's function to run")
	}
	assert.True(t, ran)
}

func TestWaitGoStartRecoversPanics(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	WaitGoStart("test-goroutine", func() {
		defer wg.Done()
		panic("boom")
	})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the panicking goroutine")
	}
}
