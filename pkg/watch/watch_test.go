package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnored(t *testing.T) {
	ignore := []string{"/src/build"}

	tcs := []struct {
		path     string
		expected bool
	}{
		{"/src/lib/slinky.c", false},
		{"/src/lib/.slinky.c.swp", true},
		{"/src/lib/slinky.c~", true},
		{"/src/lib/#slinky.c#", true},
		{"/src/build", true},
		{"/src/build/release/libslinky.so", true},
		{"/src/buildfile", false},
	}

	for _, tc := range tcs {
		assert.Equal(t, tc.expected, Ignored(tc.path, ignore), tc.path)
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	var builds int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Root:   root,
			Ignore: []string{"build"},
			Delay:  20 * time.Millisecond,
			Build: func(ctx context.Context) error {
				atomic.AddInt32(&builds, 1)
				return nil
			},
		})
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&builds) == 1 }, 5*time.Second, 10*time.Millisecond)

	// give the watcher a moment to register all directories
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "out.o"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "slinky.c"), []byte("int x;"), 0o644))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&builds) == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run didn't stop after the context was cancelled")
	}
}
