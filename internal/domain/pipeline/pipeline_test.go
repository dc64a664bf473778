package pipeline

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
	"github.com/noppelmax/depio-go/internal/domain/task"
	"github.com/noppelmax/depio-go/internal/executor/inline"
)

func testOptions() Options {
	return Options{Name: "test", RefreshPeriod: time.Millisecond}
}

func newTask(name string, queueID int, fn task.Func) *task.Task {
	return task.New(name, queueID, fn)
}

func TestRun_LinearChainSuccess(t *testing.T) {
	dir := t.TempDir()
	a := artifact.File(filepath.Join(dir, "a.txt"))
	b := artifact.File(filepath.Join(dir, "b.txt"))

	p := New(inline.New(), testOptions())
	gen := newTask("gen", 0, func(ctx context.Context) error {
		return os.WriteFile(a.Path(), []byte("a"), 0o644)
	})
	gen.Products = []artifact.Reference{a}

	consume := newTask("consume", 1, func(ctx context.Context) error {
		return os.WriteFile(b.Path(), []byte("b"), 0o644)
	})
	consume.Dependencies = []artifact.Reference{a}
	consume.Products = []artifact.Reference{b}

	require.NoError(t, p.AddTasks(gen, consume))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.FailedTasks)
}

func TestRun_MidChainFailurePropagates(t *testing.T) {
	p := New(inline.New(), testOptions())

	flaky := newTask("flaky", 0, func(ctx context.Context) error {
		return errors.New("boom")
	})
	downstream := newTask("downstream", 1, func(ctx context.Context) error {
		t.Fatal("downstream should never run")
		return nil
	})
	downstream.HardDependencies = []*task.Task{flaky}
	require.NoError(t, p.AddTasks(flaky, downstream))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestRun_DiamondWithFailingBranch(t *testing.T) {
	dir := t.TempDir()
	source := artifact.File(filepath.Join(dir, "source.txt"))
	left := artifact.File(filepath.Join(dir, "left.txt"))
	right := artifact.File(filepath.Join(dir, "right.txt"))
	joined := artifact.File(filepath.Join(dir, "joined.txt"))

	p := New(inline.New(), testOptions())

	a := newTask("a", 0, func(ctx context.Context) error {
		return os.WriteFile(source.Path(), []byte("source"), 0o644)
	})
	a.Products = []artifact.Reference{source}

	b := newTask("b", 1, func(ctx context.Context) error {
		return errors.New("b boom")
	})
	b.Dependencies = []artifact.Reference{source}
	b.Products = []artifact.Reference{left}

	c := newTask("c", 1, func(ctx context.Context) error {
		return os.WriteFile(right.Path(), []byte("right"), 0o644)
	})
	c.Dependencies = []artifact.Reference{source}
	c.Products = []artifact.Reference{right}

	d := newTask("d", 2, func(ctx context.Context) error {
		t.Fatal("d should never run")
		return nil
	})
	d.Dependencies = []artifact.Reference{left, right}
	d.Products = []artifact.Reference{joined}

	require.NoError(t, p.AddTasks(a, b, c, d))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, task.Finished, a.State())
	assert.Equal(t, task.Failed, b.State())
	assert.Equal(t, task.Finished, c.State())
	assert.Equal(t, task.DepFailed, d.State())
}

func TestRun_ProductsUpToDate_SkipsEveryTask(t *testing.T) {
	dir := t.TempDir()
	depPath := filepath.Join(dir, "dep.txt")
	outPath := filepath.Join(dir, "out.txt")

	require.NoError(t, os.WriteFile(depPath, []byte("d"), 0o644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(outPath, []byte("o"), 0o644))

	dep := artifact.File(depPath)
	out := artifact.File(outPath)

	p := New(inline.New(), testOptions())
	solo := newTask("solo", 0, func(ctx context.Context) error {
		t.Fatal("solo should be skipped, not run")
		return nil
	})
	solo.Dependencies = []artifact.Reference{dep}
	solo.Products = []artifact.Reference{out}

	require.NoError(t, p.AddTask(solo))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, task.Skipped, solo.State())
}

func TestRun_ContextCanceled_LeavesRemainingTasksCanceled(t *testing.T) {
	dir := t.TempDir()
	a := artifact.File(filepath.Join(dir, "a.txt"))

	p := New(inline.New(), testOptions())

	gen := newTask("gen", 0, func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		return os.WriteFile(a.Path(), []byte("a"), 0o644)
	})
	gen.Products = []artifact.Reference{a}

	downstream := newTask("downstream", 1, func(ctx context.Context) error {
		t.Fatal("downstream should never run")
		return nil
	})
	downstream.Dependencies = []artifact.Reference{a}

	require.NoError(t, p.AddTasks(gen, downstream))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	result, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Success)
	assert.Equal(t, task.Finished, gen.State())
	assert.Equal(t, task.Canceled, downstream.State())
}

func TestAddTask_DuplicateProductRejected(t *testing.T) {
	p := New(inline.New(), testOptions())
	shared := artifact.File("shared.txt")

	t1 := newTask("t1", 0, func(ctx context.Context) error { return nil })
	t1.Products = []artifact.Reference{shared}
	t2 := newTask("t2", 1, func(ctx context.Context) error { return nil })
	t2.Products = []artifact.Reference{shared}

	require.NoError(t, p.AddTask(t1))
	err := p.AddTask(t2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductAlreadyRegistered))
}

func TestAddTask_Idempotent(t *testing.T) {
	p := New(inline.New(), testOptions())
	t1 := newTask("t1", 0, func(ctx context.Context) error { return nil })
	require.NoError(t, p.AddTask(t1))
	require.NoError(t, p.AddTask(t1))
	assert.Len(t, p.Tasks, 1)
}

func TestResolve_CyclicDependencyRejected(t *testing.T) {
	p := New(inline.New(), testOptions())
	a := newTask("a", 0, func(ctx context.Context) error { return nil })
	b := newTask("b", 1, func(ctx context.Context) error { return nil })
	require.NoError(t, p.AddTask(a))
	require.NoError(t, p.AddTask(b))

	// the cycle is wired after both tasks are registered: AddTask's
	// hard-dependency-in-queue check would otherwise reject whichever
	// side is added first.
	a.HardDependencies = []*task.Task{b}
	b.HardDependencies = []*task.Task{a}

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCyclicDependency))
}

func TestResolve_DependencyNotAvailableRejected(t *testing.T) {
	p := New(inline.New(), testOptions())
	a := newTask("a", 0, func(ctx context.Context) error { return nil })
	a.Dependencies = []artifact.Reference{artifact.File("/nonexistent/path/does-not-exist.txt")}
	require.NoError(t, p.AddTask(a))

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyNotAvailable))
}

func TestAddTask_HardDependencyNotInQueueRejected(t *testing.T) {
	p := New(inline.New(), testOptions())
	outsider := newTask("outsider", 0, func(ctx context.Context) error { return nil })
	a := newTask("a", 0, func(ctx context.Context) error { return nil })
	a.HardDependencies = []*task.Task{outsider}

	err := p.AddTask(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskNotInQueue))
}
