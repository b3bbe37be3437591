package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type counter struct {
	N int `json:"n"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openFile(t *testing.T) Store {
	t.Helper()
	s, err := NewFile(t.TempDir(), 2*time.Second, discardLogger())
	require.NoError(t, err)
	return s
}

func openBolt(t *testing.T) Store {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "db", "test.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// runBackends runs the shared contract tests against every embedded backend.
func runBackends(t *testing.T, fn func(t *testing.T, s Store)) {
	backends := map[string]func(*testing.T) Store{
		"file": openFile,
		"bolt": openBolt,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func TestReadMissingReturnsDefault(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		got, err := Read(context.Background(), s, "counters", counter{N: 7})
		require.NoError(t, err)
		require.Equal(t, 7, got.N)
	})
}

func TestWriteThenRead(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, Write(ctx, s, "counters", counter{N: 3}))

		got, err := Read(ctx, s, "counters", counter{})
		require.NoError(t, err)
		require.Equal(t, 3, got.N)
	})
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const n = 25

		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				_, err := Update(ctx, s, "counters", counter{}, func(c counter) (counter, error) {
					c.N++
					return c, nil
				})
				return err
			})
		}
		require.NoError(t, g.Wait())

		got, err := Read(ctx, s, "counters", counter{})
		require.NoError(t, err)
		require.Equal(t, n, got.N)
	})
}

func TestMutateErrorAbortsWrite(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, Write(ctx, s, "counters", counter{N: 1}))

		boom := errors.New("boom")
		err := s.Update(ctx, func(tx Tx) error {
			if err := tx.Put("counters", counter{N: 99}); err != nil {
				return err
			}
			if err := tx.Put("other", counter{N: 99}); err != nil {
				return err
			}
			return boom
		}, "counters", "other")
		require.ErrorIs(t, err, boom)

		got, err := Read(ctx, s, "counters", counter{})
		require.NoError(t, err)
		require.Equal(t, 1, got.N)

		other, err := Read(ctx, s, "other", counter{N: -1})
		require.NoError(t, err)
		require.Equal(t, -1, other.N)
	})
}

func TestMultiDocumentUpdate(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.Update(ctx, func(tx Tx) error {
			var a counter
			if _, err := tx.Get("a", &a); err != nil {
				return err
			}
			a.N = 5
			if err := tx.Put("a", a); err != nil {
				return err
			}
			// Reads inside the transaction observe buffered writes.
			var again counter
			found, err := tx.Get("a", &again)
			if err != nil {
				return err
			}
			if !found || again.N != 5 {
				return errors.New("buffered write not visible")
			}
			return tx.Put("b", counter{N: 6})
		}, "b", "a", "a")
		require.NoError(t, err)

		a, err := Read(ctx, s, "a", counter{})
		require.NoError(t, err)
		b, err := Read(ctx, s, "b", counter{})
		require.NoError(t, err)
		require.Equal(t, 5, a.N)
		require.Equal(t, 6, b.N)
	})
}

func TestUndeclaredDocument(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		err := s.Update(context.Background(), func(tx Tx) error {
			return tx.Put("b", counter{})
		}, "a")
		require.ErrorIs(t, err, ErrUndeclared)
	})
}

func TestViewIsReadOnly(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		err := s.View(context.Background(), func(tx Tx) error {
			return tx.Put("a", counter{})
		}, "a")
		require.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestLoadMissingCollectionIsEmpty(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		err := s.View(context.Background(), func(tx Tx) error {
			records, err := Load[counter](tx, Users)
			require.NoError(t, err)
			require.NotNil(t, records)
			require.Empty(t, records)
			return nil
		}, Users)
		require.NoError(t, err)
	})
}

func TestFileCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir, time.Second, discardLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path(Users), []byte(`[{"id":`), 0o644))

	_, err = Read(context.Background(), s, Users, []counter{})
	var corrupt *CorruptError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, Users, corrupt.Name)
	require.Equal(t, s.Path(Users), corrupt.Path)

	// The corrupt file is left untouched for an operator to inspect.
	raw, err := os.ReadFile(s.Path(Users))
	require.NoError(t, err)
	require.Equal(t, `[{"id":`, string(raw))
}

func TestFileWritesLeaveNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(filepath.Join(dir, "nested", "data"), time.Second, discardLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, Write(context.Background(), s, "counters", counter{N: i}))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested", "data"))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestFileUpdateHonoursCancelledContext(t *testing.T) {
	s := openFile(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Update(ctx, func(tx Tx) error { return nil }, "counters")
	require.ErrorIs(t, err, context.Canceled)
}

func TestBoltUpdateTimesOutWaitingForWriter(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "test.db"), 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		return s.Update(ctx, func(tx Tx) error {
			close(holding)
			<-release
			return tx.Put("counters", counter{N: 1})
		}, "counters")
	})
	<-holding

	var ran atomic.Bool
	err = s.Update(ctx, func(tx Tx) error {
		ran.Store(true)
		return tx.Put("counters", counter{N: 99})
	}, "counters")
	require.ErrorIs(t, err, lock.ErrTimeout)

	close(release)
	require.NoError(t, g.Wait())

	// The abandoned update never runs, even once the writer is free.
	require.NoError(t, Write(ctx, s, "other", counter{N: 2}))
	require.False(t, ran.Load())
	got, err := Read(ctx, s, "counters", counter{})
	require.NoError(t, err)
	require.Equal(t, 1, got.N)
}

func TestBoltUpdateRecoversPanic(t *testing.T) {
	s := openBolt(t)
	err := s.Update(context.Background(), func(tx Tx) error { panic("boom") }, "counters")
	require.ErrorContains(t, err, "boom")

	// The writer is still usable.
	require.NoError(t, Write(context.Background(), s, "counters", counter{N: 4}))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, normalize([]string{"b", "", "a", "b"}))
}
