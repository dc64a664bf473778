package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
	"github.com/noppelmax/depio-go/internal/domain/pipeline"
	"github.com/noppelmax/depio-go/internal/domain/task"
)

// buildDemoPipeline registers one of a few illustrative task graphs
// into p, writing scratch files under a temp directory. These exist so
// `depio run` does something observable out of the box; library users
// are expected to call pipeline.AddTask with their own tasks instead.
func buildDemoPipeline(p *pipeline.Pipeline, name string) error {
	dir, err := os.MkdirTemp("", "depio-demo-")
	if err != nil {
		return fmt.Errorf("demo: create scratch dir: %w", err)
	}

	switch name {
	case "diamond":
		return buildDiamondDemo(p, dir)
	case "failure":
		return buildFailureDemo(p, dir)
	default:
		return buildChainDemo(p, dir)
	}
}

func writeFileTask(path, contents string) task.Func {
	return func(ctx context.Context) error {
		return os.WriteFile(path, []byte(contents), 0o644)
	}
}

// buildChainDemo: generate -> process -> report, a straight line.
func buildChainDemo(p *pipeline.Pipeline, dir string) error {
	raw := artifact.File(filepath.Join(dir, "raw.txt"))
	processed := artifact.File(filepath.Join(dir, "processed.txt"))
	report := artifact.File(filepath.Join(dir, "report.txt"))

	generate := task.New("generate", 0, writeFileTask(raw.Path(), "raw data\n"),
		task.WithProducts(raw))
	process := task.New("process", 1, func(ctx context.Context) error {
		data, err := os.ReadFile(raw.Path())
		if err != nil {
			return err
		}
		return os.WriteFile(processed.Path(), append([]byte("processed: "), data...), 0o644)
	}, task.WithDependencies(raw), task.WithProducts(processed))
	reportTask := task.New("report", 2, func(ctx context.Context) error {
		data, err := os.ReadFile(processed.Path())
		if err != nil {
			return err
		}
		return os.WriteFile(report.Path(), append([]byte("report:\n"), data...), 0o644)
	}, task.WithDependencies(processed), task.WithProducts(report))

	return p.AddTasks(generate, process, reportTask)
}

// buildDiamondDemo: two independent branches from a shared source,
// joined by a final task depending on both.
func buildDiamondDemo(p *pipeline.Pipeline, dir string) error {
	source := artifact.File(filepath.Join(dir, "source.txt"))
	left := artifact.File(filepath.Join(dir, "left.txt"))
	right := artifact.File(filepath.Join(dir, "right.txt"))
	joined := artifact.File(filepath.Join(dir, "joined.txt"))

	gen := task.New("generate", 0, writeFileTask(source.Path(), "source\n"), task.WithProducts(source))
	leftTask := task.New("left", 1, writeFileTask(left.Path(), "left branch\n"),
		task.WithDependencies(source), task.WithProducts(left))
	rightTask := task.New("right", 1, writeFileTask(right.Path(), "right branch\n"),
		task.WithDependencies(source), task.WithProducts(right))
	join := task.New("join", 2, func(ctx context.Context) error {
		l, err := os.ReadFile(left.Path())
		if err != nil {
			return err
		}
		r, err := os.ReadFile(right.Path())
		if err != nil {
			return err
		}
		return os.WriteFile(joined.Path(), append(l, r...), 0o644)
	}, task.WithDependencies(left, right), task.WithProducts(joined))

	return p.AddTasks(gen, leftTask, rightTask, join)
}

// buildFailureDemo: a task that always fails, and a dependent that
// should end DepFailed without ever running.
func buildFailureDemo(p *pipeline.Pipeline, dir string) error {
	flaky := artifact.File(filepath.Join(dir, "flaky.txt"))
	downstream := artifact.File(filepath.Join(dir, "downstream.txt"))

	flakyTask := task.New("flaky", 0, func(ctx context.Context) error {
		return fmt.Errorf("simulated failure")
	}, task.WithProducts(flaky))
	downstreamTask := task.New("downstream", 1, writeFileTask(downstream.Path(), "never written\n"),
		task.WithDependencies(flaky), task.WithProducts(downstream))

	return p.AddTasks(flakyTask, downstreamTask)
}
