package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlag(t *testing.T) {
	var f Flag
	if f.Online() {
		t.Error("zero-value flag should be offline")
	}
	f.Set(true)
	if !f.Online() {
		t.Error("flag should be online after Set(true)")
	}
}

func TestMonitorProbesImmediately(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error { return nil }, time.Hour)
	m.Start(context.Background())
	defer m.Stop()

	if !m.Online() {
		t.Error("monitor should be online right after Start when ping succeeds")
	}
}

func TestMonitorReportsOffline(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error { return errors.New("unreachable") }, time.Hour)
	m.Start(context.Background())
	defer m.Stop()

	if m.Online() {
		t.Error("monitor should be offline when ping fails")
	}
}

func TestMonitorNotifiesOnFlip(t *testing.T) {
	var up atomic.Bool
	m := NewMonitor(func(ctx context.Context) error {
		if up.Load() {
			return nil
		}
		return errors.New("down")
	}, 5*time.Millisecond)

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Start(context.Background())
	defer m.Stop()

	up.Store(true)
	select {
	case online := <-ch:
		if !online {
			t.Error("expected an online notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after connectivity flip")
	}

	up.Store(false)
	select {
	case online := <-ch:
		if online {
			t.Error("expected an offline notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after going back down")
	}
}

func TestMonitorStopIdempotent(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error { return nil }, time.Hour)
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
