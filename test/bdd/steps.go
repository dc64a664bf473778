// Package bdd exercises the concrete pipeline scenarios end to end,
// mirroring the teacher's own godog harness shape (ScenarioInitializer
// registering step definitions, TestFeatures driving godog.TestSuite).
package bdd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
	"github.com/noppelmax/depio-go/internal/domain/pipeline"
	"github.com/noppelmax/depio-go/internal/domain/task"
	"github.com/noppelmax/depio-go/internal/executor/inline"
)

type world struct {
	dir       string
	pipeline  *pipeline.Pipeline
	tasks     map[string]*task.Task
	addErr    error
	runErr    error
	runResult *pipeline.Result
}

func newWorld() *world {
	return &world{tasks: make(map[string]*task.Task)}
}

func (w *world) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *world) ref(name string) artifact.Reference {
	return artifact.File(w.path(name))
}

func (w *world) add(t *task.Task) {
	w.tasks[t.Name] = t
	if err := w.pipeline.AddTask(t); err != nil {
		w.addErr = err
	}
}

func (w *world) aPipelineWithATaskProducing(name, product string) error {
	dst := w.ref(product)
	t := task.New(name, len(w.tasks), func(ctx context.Context) error {
		return os.WriteFile(dst.String(), []byte(name), 0o644)
	}, task.WithProducts(dst))
	w.add(t)
	return nil
}

func (w *world) aTaskDependingOnAndProducing(name, dep, product string) error {
	depRef := w.ref(dep)
	dst := w.ref(product)
	t := task.New(name, len(w.tasks), func(ctx context.Context) error {
		return os.WriteFile(dst.String(), []byte(name), 0o644)
	}, task.WithDependencies(depRef), task.WithProducts(dst))
	w.add(t)
	return nil
}

func (w *world) aTaskDependingOnAnd(name, dep1, dep2 string) error {
	t := task.New(name, len(w.tasks), func(ctx context.Context) error { return nil },
		task.WithDependencies(w.ref(dep1), w.ref(dep2)))
	w.add(t)
	return nil
}

func (w *world) aTaskThatAlwaysFails(name string) error {
	t := task.New(name, len(w.tasks), func(ctx context.Context) error {
		return fmt.Errorf("%s always fails", name)
	})
	w.add(t)
	return nil
}

// aTaskDependingOnThatAlwaysFailsProducing registers a task that
// declares a product (so tasks depending on that product resolve to a
// real TaskDependency, not a path dependency) but never actually
// produces it, since its Func always errors first.
func (w *world) aTaskDependingOnThatAlwaysFailsProducing(name, dep, product string) error {
	t := task.New(name, len(w.tasks), func(ctx context.Context) error {
		return fmt.Errorf("%s always fails", name)
	}, task.WithDependencies(w.ref(dep)), task.WithProducts(w.ref(product)))
	w.add(t)
	return nil
}

// aTaskDependingOnAndProducingAnUpToDateProduct writes both the
// dependency and the product to disk up front, the product strictly
// newer, so the task is already skippable before the pipeline ever runs.
func (w *world) aTaskDependingOnAndProducingAnUpToDateProduct(name, dep, product string) error {
	depPath := w.path(dep)
	productPath := w.path(product)
	if err := os.WriteFile(depPath, []byte(dep), 0o644); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(productPath, []byte(product), 0o644); err != nil {
		return err
	}
	t := task.New(name, len(w.tasks), func(ctx context.Context) error {
		return fmt.Errorf("%s should have been skipped, not run", name)
	}, task.WithDependencies(w.ref(dep)), task.WithProducts(w.ref(product)))
	w.add(t)
	return nil
}

func (w *world) aTaskHardDependingOn(name, depName string) error {
	dep, ok := w.tasks[depName]
	if !ok {
		return fmt.Errorf("no such task %q registered yet", depName)
	}
	t := task.New(name, len(w.tasks), func(ctx context.Context) error { return nil },
		task.WithHardDependencies(dep))
	w.add(t)
	return nil
}

// tasksHardDependingOnEachOther registers two tasks with no link, then
// wires the cycle directly on the Task values: AddTask's
// hard-dependency-in-queue check would otherwise reject whichever side
// is registered first, since neither can reference the other until
// both exist.
func (w *world) tasksHardDependingOnEachOther(nameA, nameB string) error {
	a := task.New(nameA, 0, func(ctx context.Context) error { return nil })
	b := task.New(nameB, 1, func(ctx context.Context) error { return nil })
	w.add(a)
	w.add(b)
	a.HardDependencies = []*task.Task{b}
	b.HardDependencies = []*task.Task{a}
	return nil
}

func (w *world) aTaskDependingOnTheMissingPath(name, path string) error {
	t := task.New(name, len(w.tasks), func(ctx context.Context) error { return nil },
		task.WithDependencies(w.ref(path)))
	w.add(t)
	return nil
}

func (w *world) thePipelineRunsToCompletion() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := w.pipeline.Run(ctx)
	w.runResult = result
	w.runErr = err
	return nil
}

func (w *world) theSameTaskIsRegisteredAgain() error {
	for _, t := range w.tasks {
		return w.pipeline.AddTask(t)
	}
	return nil
}

func (w *world) everyTaskIsInASuccessfulTerminalState() error {
	if w.runErr != nil {
		return fmt.Errorf("run returned error: %w", w.runErr)
	}
	for name, t := range w.tasks {
		if !t.State().IsSuccessfulTerminal() {
			return fmt.Errorf("task %q ended %s, not successful-terminal", name, t.State())
		}
	}
	return nil
}

func (w *world) taskIs(name, state string) error {
	t, ok := w.tasks[name]
	if !ok {
		return fmt.Errorf("no such task %q", name)
	}
	if t.State().String() != state {
		return fmt.Errorf("task %q is %s, want %s", name, t.State(), state)
	}
	return nil
}

func (w *world) theRunIsRejectedWithACyclicDependencyError() error {
	if w.runErr == nil || !errors.Is(w.runErr, pipeline.ErrCyclicDependency) {
		return fmt.Errorf("want ErrCyclicDependency, got %v", w.runErr)
	}
	return nil
}

func (w *world) theRunIsRejectedWithADependencyNotAvailableError() error {
	if w.runErr == nil || !errors.Is(w.runErr, pipeline.ErrDependencyNotAvailable) {
		return fmt.Errorf("want ErrDependencyNotAvailable, got %v", w.runErr)
	}
	return nil
}

func (w *world) registeringTheSecondTaskFailsWithAProductAlreadyRegisteredError() error {
	if w.addErr == nil || !errors.Is(w.addErr, pipeline.ErrProductAlreadyRegistered) {
		return fmt.Errorf("want ErrProductAlreadyRegistered, got %v", w.addErr)
	}
	return nil
}

func (w *world) thePipelineStillHasExactlyNTask(n int) error {
	if len(w.pipeline.Tasks) != n {
		return fmt.Errorf("got %d tasks, want %d", len(w.pipeline.Tasks), n)
	}
	return nil
}

// InitializeScenario registers every step definition and resets the
// world before each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	var w *world

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		w = newWorld()
		dir, err := os.MkdirTemp("", "depio-bdd-")
		if err != nil {
			return c, err
		}
		w.dir = dir
		w.pipeline = pipeline.New(inline.New(), pipeline.Options{
			Name:          sc.Name,
			RefreshPeriod: time.Millisecond,
		})
		return c, nil
	})

	ctx.Given(`^a pipeline with a task "([^"]*)" producing "([^"]*)"$`, func(name, product string) error {
		return w.aPipelineWithATaskProducing(name, product)
	})
	ctx.Given(`^a task "([^"]*)" producing "([^"]*)"$`, func(name, product string) error {
		return w.aPipelineWithATaskProducing(name, product)
	})
	ctx.Given(`^a task "([^"]*)" depending on "([^"]*)" and producing "([^"]*)"$`, func(name, dep, product string) error {
		return w.aTaskDependingOnAndProducing(name, dep, product)
	})
	ctx.Given(`^a task "([^"]*)" depending on "([^"]*)" and "([^"]*)"$`, func(name, dep1, dep2 string) error {
		return w.aTaskDependingOnAnd(name, dep1, dep2)
	})
	ctx.Given(`^a pipeline with a task "([^"]*)" that always fails$`, func(name string) error {
		return w.aTaskThatAlwaysFails(name)
	})
	ctx.Given(`^a task "([^"]*)" hard-depending on "([^"]*)"$`, func(name, dep string) error {
		return w.aTaskHardDependingOn(name, dep)
	})
	ctx.Given(`^a pipeline with tasks "([^"]*)" and "([^"]*)" hard-depending on each other$`, func(a, b string) error {
		return w.tasksHardDependingOnEachOther(a, b)
	})
	ctx.Given(`^a pipeline with a task "([^"]*)" depending on the missing path "([^"]*)"$`, func(name, path string) error {
		return w.aTaskDependingOnTheMissingPath(name, path)
	})
	ctx.Given(`^a task "([^"]*)" depending on "([^"]*)" that always fails producing "([^"]*)"$`, func(name, dep, product string) error {
		return w.aTaskDependingOnThatAlwaysFailsProducing(name, dep, product)
	})
	ctx.Given(`^a task "([^"]*)" depending on "([^"]*)" and producing an up-to-date "([^"]*)"$`, func(name, dep, product string) error {
		return w.aTaskDependingOnAndProducingAnUpToDateProduct(name, dep, product)
	})

	ctx.When(`^the pipeline runs to completion$`, func() error {
		return w.thePipelineRunsToCompletion()
	})
	ctx.When(`^the same task is registered again$`, func() error {
		return w.theSameTaskIsRegisteredAgain()
	})

	ctx.Then(`^every task is in a successful terminal state$`, func() error {
		return w.everyTaskIsInASuccessfulTerminalState()
	})
	ctx.Then(`^task "([^"]*)" is "([^"]*)"$`, func(name, state string) error {
		return w.taskIs(name, state)
	})
	ctx.Then(`^the run is rejected with a cyclic dependency error$`, func() error {
		return w.theRunIsRejectedWithACyclicDependencyError()
	})
	ctx.Then(`^the run is rejected with a dependency-not-available error$`, func() error {
		return w.theRunIsRejectedWithADependencyNotAvailableError()
	})
	ctx.Then(`^registering the second task fails with a product-already-registered error$`, func() error {
		return w.registeringTheSecondTaskFailsWithAProductAlreadyRegisteredError()
	})
	ctx.Then(`^the pipeline still has exactly (\d+) task$`, func(n int) error {
		return w.thePipelineStillHasExactlyNTask(n)
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if w.dir != "" {
			os.RemoveAll(w.dir)
		}
		return c, nil
	})
}
