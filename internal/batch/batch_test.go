package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/ncrtxt/core/convert"
	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newConverter(t *testing.T) *convert.Converter {
	t.Helper()
	c, err := convert.New(convert.WithChunkSize(7))
	require.NoError(t, err)
	return c
}

func TestPlan(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.html":         "",
		"docs/b.html":    "",
		"docs/x/c.html":  "",
		"docs/notes.txt": "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(src, "docs", "dir.html"), 0755))

	items, err := Plan([]string{filepath.Join(src, "docs", "**", "*.html")}, out, ".txt")
	require.NoError(t, err)

	got := make(map[string]string)
	for _, it := range items {
		got[it.Input] = it.Output
	}
	assert.Equal(t, map[string]string{
		filepath.Join(src, "docs", "b.html"):      filepath.Join(out, "b.html.txt"),
		filepath.Join(src, "docs", "x", "c.html"): filepath.Join(out, "x", "c.html.txt"),
	}, got)
}

func TestPlan_DeduplicatesInputs(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "", "b.txt": ""})

	items, err := Plan([]string{
		filepath.Join(src, "*.txt"),
		filepath.Join(src, "a.txt"),
	}, t.TempDir(), "")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestPlan_Errors(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "", "sub/a.txt": ""})

	tests := []struct {
		name     string
		patterns []string
		outDir   string
		suffix   string
		want     error
	}{
		{"no patterns", nil, t.TempDir(), "", cerrors.ErrInvalidInput},
		{"empty out dir", []string{filepath.Join(src, "*.txt")}, "", "", cerrors.ErrInvalidInput},
		{"no matches", []string{filepath.Join(src, "*.html")}, t.TempDir(), "", cerrors.ErrNotFound},
		{"bad pattern", []string{filepath.Join(src, "[")}, t.TempDir(), "", cerrors.ErrInvalidInput},
		{"overwrites input", []string{filepath.Join(src, "a.txt")}, src, "", cerrors.ErrInvalidInput},
		{"output collision", []string{filepath.Join(src, "a.txt"), filepath.Join(src, "sub", "a.txt")}, t.TempDir(), "", cerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.patterns, tt.outDir, tt.suffix)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{
		"one.txt":       "&#65;&#66;&#67;",
		"two/two.txt":   "&#x4E2D;&#x6587;",
		"two/three.txt": "plain & simple",
	})

	items, err := Run(context.Background(), newConverter(t), Options{
		Patterns: []string{filepath.Join(src, "**", "*.txt")},
		OutDir:   out,
		Jobs:     2,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	want := map[string]string{
		"one.txt":       "ABC",
		"two/two.txt":   "中文",
		"two/three.txt": "plain & simple",
	}
	for rel, content := range want {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, content, string(got), rel)
	}

	runIDs := make(map[string]bool)
	for _, it := range items {
		require.NotNil(t, it.Result, it.Input)
		runIDs[it.Result.RunID] = true
	}
	assert.Len(t, runIDs, 1, "a batch shares one run ID")
}

func TestRun_StopsOnFailure(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"bad.txt": "caf\xe9",
	})

	items, err := Run(context.Background(), newConverter(t), Options{
		Patterns: []string{filepath.Join(src, "*.txt")},
		OutDir:   t.TempDir(),
		Jobs:     1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrEncoding)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Result)
}

func TestRun_InvalidJobs(t *testing.T) {
	_, err := Run(context.Background(), newConverter(t), Options{Jobs: 0})

	var vErr *cerrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "jobs", vErr.Field)
}

func TestRun_Cancelled(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "&#65;"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, newConverter(t), Options{
		Patterns: []string{filepath.Join(src, "*.txt")},
		OutDir:   t.TempDir(),
		Jobs:     1,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
