package decl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type copyParams struct {
	Src   string `depio:"dependency"`
	Dst   string `depio:"product"`
	Label string `depio:"ignore_eq"`
}

func TestTask_ExtractsDependenciesAndProducts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))

	params := copyParams{Src: src, Dst: dst, Label: "run-1"}
	tk, err := Task("copy", 0, func(ctx context.Context, p copyParams) error {
		data, err := os.ReadFile(p.Src)
		if err != nil {
			return err
		}
		return os.WriteFile(p.Dst, data, 0o644)
	}, params)
	require.NoError(t, err)

	require.Len(t, tk.Dependencies, 1)
	assert.Equal(t, src, tk.Dependencies[0].String())
	require.Len(t, tk.Products, 1)
	assert.Equal(t, dst, tk.Products[0].String())

	require.NoError(t, tk.Func(context.Background()))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestEqualityKey_IgnoresTaggedField(t *testing.T) {
	base := copyParams{Src: "a", Dst: "b", Label: "one"}
	variant := copyParams{Src: "a", Dst: "b", Label: "two"}

	k1, err := EqualityKey(base)
	require.NoError(t, err)
	k2, err := EqualityKey(variant)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	different := copyParams{Src: "a", Dst: "c", Label: "one"}
	k3, err := EqualityKey(different)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}
