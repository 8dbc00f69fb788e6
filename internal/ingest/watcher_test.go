package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherDeliversBurstOfNewFiles(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{root},
		Debounce: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	go func() {
		for range errs {
		}
	}()

	// a write burst under a short debounce exercises the flush timer
	// firing while new events are still arriving
	const n = 100
	want := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(root, fmt.Sprintf("inv-%03d.csv", i))
		require.NoError(t, os.WriteFile(p, []byte("vendor,amount\n"), 0o644))
		want[p] = struct{}{}
	}

	got := make(map[string]struct{}, n)
	deadline := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case p, ok := <-paths:
			if !ok {
				t.Fatalf("watch channel closed early, received %d of %d paths", len(got), n)
			}
			if _, expected := want[p]; expected {
				got[p] = struct{}{}
			}
		case <-deadline:
			t.Fatalf("timed out, received %d of %d paths", len(got), n)
		}
	}
}

func TestWatcherIgnoresUnsupportedExtensions(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{root},
		Debounce: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	go func() {
		for range errs {
		}
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	wanted := filepath.Join(root, "bill.pdf")
	require.NoError(t, os.WriteFile(wanted, []byte("%PDF-1.4"), 0o644))

	select {
	case p := <-paths:
		require.Equal(t, wanted, p)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the pdf event")
	}
}

func TestWatcherClosesChannelOnCancel(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	paths, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{root},
		Debounce: time.Millisecond,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("x"), 0o644))
	cancel()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-paths:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel never closed after cancel")
		}
	}
}
