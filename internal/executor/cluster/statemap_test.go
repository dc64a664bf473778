package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noppelmax/depio-go/internal/domain/task"
)

func TestToTaskState(t *testing.T) {
	cases := []struct {
		in   externalStatus
		want task.State
		ok   bool
	}{
		{statusConfiguring, task.Hold, true},
		{statusPending, task.Hold, true},
		{statusRunning, task.Running, true},
		{statusCompleted, task.Finished, true},
		{statusFailed, task.Failed, true},
		{statusTimeout, task.Failed, true},
		{statusOutOfMemory, task.Failed, true},
		{statusCanceled, task.Canceled, true},
		{externalStatus("WAT"), task.Unknown, false},
	}
	for _, c := range cases {
		got, ok := toTaskState(c.in)
		assert.Equal(t, c.want, got, c.in)
		assert.Equal(t, c.ok, ok, c.in)
	}
}
