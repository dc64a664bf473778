package inline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noppelmax/depio-go/internal/domain/task"
)

func TestSubmit_RunsSynchronously(t *testing.T) {
	ran := false
	tk := task.New("t", 0, func(ctx context.Context) error {
		ran = true
		return nil
	})
	tk.MarkPending()

	e := New()
	require.NoError(t, e.Submit(context.Background(), tk))
	assert.True(t, ran)
	assert.Equal(t, task.Finished, tk.State())
	assert.Equal(t, 0, e.QueuedCount())
}
