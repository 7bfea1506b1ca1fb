package server

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWorker_Do(t *testing.T) {
	w := NewWorker(2)
	defer w.Stop()

	v, err := w.Do(context.Background(), func() (any, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("Do = %v, %v, want 42, nil", v, err)
	}

	want := errors.New("boom")
	if _, err := w.Do(context.Background(), func() (any, error) { return nil, want }); err != want {
		t.Errorf("Do err = %v, want %v", err, want)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	_, err := w.Do(context.Background(), func() (any, error) { panic("negative index") })
	if err == nil || !strings.Contains(err.Error(), "negative index") {
		t.Errorf("err = %v, want recovered panic", err)
	}

	// The worker keeps serving after a panic.
	if v, err := w.Do(context.Background(), func() (any, error) { return "ok", nil }); v != "ok" || err != nil {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorker_CancelWhileQueued(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go w.Do(context.Background(), func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	_, err := w.Do(ctx, func() (any, error) { ran = true; return nil, nil })
	close(release)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("cancelled job ran")
	}
}

func TestWorker_Stopped(t *testing.T) {
	w := NewWorker(1)
	w.Stop()
	w.Stop()

	if _, err := w.Do(context.Background(), func() (any, error) { return nil, nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}
