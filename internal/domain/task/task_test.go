package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
)

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	out := artifact.File(filepath.Join(dir, "out.txt"))

	tk := New("write", 0, func(ctx context.Context) error {
		return os.WriteFile(out.Path(), []byte("hi"), 0o644)
	}, WithProducts(out))
	tk.MarkPending()

	require.NoError(t, tk.Run(context.Background()))
	assert.Equal(t, Finished, tk.State())
}

func TestRun_ProductNotProduced(t *testing.T) {
	dir := t.TempDir()
	out := artifact.File(filepath.Join(dir, "missing.txt"))

	tk := New("noop", 0, func(ctx context.Context) error { return nil }, WithProducts(out))
	tk.MarkPending()

	err := tk.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotProduced))
	assert.Equal(t, Failed, tk.State())
}

func TestRun_ProductNotUpdated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	out := artifact.File(path)
	tk := New("stale", 0, func(ctx context.Context) error { return nil }, WithProducts(out))
	tk.MarkPending()

	err := tk.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotUpdated))
}

func TestRun_TaskRaised(t *testing.T) {
	tk := New("boom", 0, func(ctx context.Context) error { return errors.New("kaboom") })
	tk.MarkPending()

	err := tk.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskRaised))
	assert.Equal(t, Failed, tk.State())
}

func TestRun_DependencyNotMet(t *testing.T) {
	dir := t.TempDir()
	missing := artifact.File(filepath.Join(dir, "missing.txt"))

	tk := New("needs-path", 0, func(ctx context.Context) error { return nil })
	tk.PathDependencies = []artifact.Reference{missing}
	tk.MarkPending()

	err := tk.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyNotMet))
}

func TestIsSkippable(t *testing.T) {
	dir := t.TempDir()
	depPath := filepath.Join(dir, "dep.txt")
	productPath := filepath.Join(dir, "product.txt")

	require.NoError(t, os.WriteFile(depPath, []byte("d"), 0o644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(productPath, []byte("p"), 0o644))

	dep := artifact.File(depPath)
	product := artifact.File(productPath)

	tk := New("maybe-skip", 0, func(ctx context.Context) error { return nil },
		WithDependencies(dep), WithProducts(product))
	assert.True(t, tk.IsSkippable())

	// touch the dependency so it's newer than the product.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(depPath, later, later))
	assert.False(t, tk.IsSkippable())
}

func TestIsSkippable_AlwaysBuild(t *testing.T) {
	dir := t.TempDir()
	productPath := filepath.Join(dir, "product.txt")
	require.NoError(t, os.WriteFile(productPath, []byte("p"), 0o644))

	tk := New("always", 0, func(ctx context.Context) error { return nil },
		WithProducts(artifact.File(productPath)), WithAlwaysBuild())
	assert.False(t, tk.IsSkippable())
}

func TestState_IllegalTransitionPanics(t *testing.T) {
	tk := New("t", 0, func(ctx context.Context) error { return nil })
	assert.Panics(t, func() { tk.MarkFinished() })
}
