package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/pack"
)

func TestAdd_Selection(t *testing.T) {
	d := newTestDeps(t, 100)

	out, err := d.Add(context.Background(), AddInput{
		Workspace:   "Proj",
		DisplayName: "snippet",
		SourcePath:  "/src/main.go",
		Content:     tokens(6),
	})
	require.NoError(t, err)

	assert.Equal(t, "proj", out.Workspace)
	assert.Equal(t, contextitem.KindSelection, out.Item.Kind)
	assert.Equal(t, "snippet", out.Item.DisplayName)
	assert.Equal(t, 6, out.Item.SizeEstimate)
	assert.Len(t, out.Item.ID, 26)
	assert.Empty(t, out.Evicted)
	assert.Equal(t, accumulator.Stats{Items: 1, Total: 6, Capacity: 100, UsagePercent: 6}, out.Stats)
}

func TestAdd_File(t *testing.T) {
	d := newTestDeps(t, 100)
	path := writeTemp(t, t.TempDir(), "notes.txt", "hello world")

	out, err := d.Add(context.Background(), AddInput{Path: path})
	require.NoError(t, err)

	assert.Equal(t, contextitem.KindFile, out.Item.Kind)
	assert.Equal(t, "notes.txt", out.Item.DisplayName)
	assert.Equal(t, path, out.Item.SourcePath)
	assert.Equal(t, 3, out.Item.SizeEstimate)

	got, err := d.Get(context.Background(), GetInput{ID: out.Item.ID})
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Content)
}

func TestAdd_FileLineRange(t *testing.T) {
	d := newTestDeps(t, 100)
	path := writeTemp(t, t.TempDir(), "main.go", "one\ntwo\nthree\nfour\n")

	out, err := d.Add(context.Background(), AddInput{Path: path, Lines: "2:3"})
	require.NoError(t, err)
	assert.Equal(t, contextitem.KindSelection, out.Item.Kind)
	assert.Equal(t, "main.go (lines 2:3)", out.Item.DisplayName)

	got, err := d.Get(context.Background(), GetInput{ID: out.Item.ID})
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", got.Content)

	// Past-the-end ranges clamp; starting past the end fails.
	out, err = d.Add(context.Background(), AddInput{Path: path, Lines: "4:99"})
	require.NoError(t, err)
	got, err = d.Get(context.Background(), GetInput{ID: out.Item.ID})
	require.NoError(t, err)
	assert.Equal(t, "four", got.Content)

	_, err = d.Add(context.Background(), AddInput{Path: path, Lines: "9:10"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestAdd_InputErrors(t *testing.T) {
	d := newTestDeps(t, 100)
	dir := t.TempDir()
	file := writeTemp(t, dir, "a.txt", "abc")

	tests := []struct {
		name  string
		input AddInput
		code  errors.ErrorCode
	}{
		{"no source", AddInput{DisplayName: "x"}, errors.ErrInvalidRequest},
		{"both sources", AddInput{Content: tokens(1), Path: file}, errors.ErrInvalidRequest},
		{"lines with content", AddInput{DisplayName: "x", Content: tokens(1), Lines: "1:2"}, errors.ErrInvalidRequest},
		{"bad lines", AddInput{Path: file, Lines: "b:a"}, errors.ErrInvalidRequest},
		{"reversed lines", AddInput{Path: file, Lines: "5:2"}, errors.ErrInvalidRequest},
		{"missing file", AddInput{Path: filepath.Join(dir, "nope.txt")}, errors.ErrFileNotFound},
		{"directory", AddInput{Path: dir}, errors.ErrInvalidRequest},
		{"no name", AddInput{Content: tokens(1)}, errors.ErrInvalidRequest},
		{"bad kind", AddInput{Kind: "url", DisplayName: "x", Content: tokens(1)}, errors.ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Add(context.Background(), tc.input)
			assert.True(t, errors.Is(err, tc.code), "want %s, got %v", tc.code, err)
		})
	}
	assert.Empty(t, listNames(t, d, ""))
}

func TestAdd_OversizedFileRejectedBeforeRead(t *testing.T) {
	d := newTestDeps(t, 5)
	path := writeTemp(t, t.TempDir(), "big.txt", string(*tokens(6)))

	_, err := d.Add(context.Background(), AddInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrItemTooLarge), "got %v", err)
	be := errors.As(err)
	assert.Equal(t, 413, be.Status)
}

func TestAdd_SelectionFromOversizedFile(t *testing.T) {
	d := newTestDeps(t, 100)
	path := writeTemp(t, t.TempDir(), "big.txt", "short\n"+strings.Repeat("x", 1000))

	out, err := d.Add(context.Background(), AddInput{Path: path, Lines: "1:1"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Item.SizeEstimate)
	assert.Equal(t, "big.txt (lines 1:1)", out.Item.DisplayName)

	// The selected lines are still weighed against capacity.
	_, err = d.Add(context.Background(), AddInput{Path: path, Lines: "1:2"})
	assert.True(t, errors.Is(err, errors.ErrItemTooLarge), "got %v", err)

	_, err = d.Add(context.Background(), AddInput{Path: path})
	assert.True(t, errors.Is(err, errors.ErrItemTooLarge), "got %v", err)
	assert.Equal(t, []string{"big.txt (lines 1:1)"}, listNames(t, d, ""))
}

func TestSliceLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		lines   LineRange
		want    string
	}{
		{"middle", "one\ntwo\nthree\n", LineRange{2, 2}, "two"},
		{"crlf", "one\r\ntwo\r\nthree\r\n", LineRange{1, 2}, "one\r\ntwo"},
		{"crlf last line", "one\r\ntwo\r\n", LineRange{2, 5}, "two"},
		{"no trailing newline", "one\ntwo", LineRange{2, 2}, "two"},
		{"keeps selected blank line", "one\n\nthree\n", LineRange{1, 2}, "one\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sliceLines(tt.content, &tt.lines)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdd_EvictionModes(t *testing.T) {
	ctx := context.Background()

	t.Run("yes evicts oldest", func(t *testing.T) {
		d := newTestDeps(t, 10)
		addSelection(t, d, "A", 6)

		out, err := d.Add(ctx, AddInput{DisplayName: "B", Content: tokens(6), Evict: EvictYes})
		require.NoError(t, err)
		require.Len(t, out.Evicted, 1)
		assert.Equal(t, "A", out.Evicted[0].DisplayName)
		assert.Equal(t, 6, out.EvictedTokens)
		assert.Equal(t, []string{"B"}, listNames(t, d, ""))
		assert.Equal(t, 6, out.Stats.Total)
	})

	t.Run("no declines", func(t *testing.T) {
		d := newTestDeps(t, 10)
		addSelection(t, d, "A", 6)

		_, err := d.Add(ctx, AddInput{DisplayName: "B", Content: tokens(6), Evict: EvictNo})
		assert.True(t, errors.Is(err, errors.ErrEvictionDeclined), "got %v", err)
		assert.Equal(t, []string{"A"}, listNames(t, d, ""))
	})

	t.Run("ask without confirmer", func(t *testing.T) {
		d := newTestDeps(t, 10)
		addSelection(t, d, "A", 6)

		_, err := d.Add(ctx, AddInput{DisplayName: "B", Content: tokens(6)})
		assert.True(t, errors.Is(err, errors.ErrCapacityExceeded), "got %v", err)
		assert.Equal(t, []string{"A"}, listNames(t, d, ""))
	})

	t.Run("ask consults confirmer with the plan", func(t *testing.T) {
		d := newTestDeps(t, 10)
		addSelection(t, d, "A", 3)
		addSelection(t, d, "B", 3)
		addSelection(t, d, "C", 3)

		var seen accumulator.EvictionPlan
		confirm := accumulator.ConfirmFunc(func(_ context.Context, plan accumulator.EvictionPlan) (bool, error) {
			seen = plan
			return true, nil
		})
		out, err := d.Add(ctx, AddInput{DisplayName: "D", Content: tokens(5), Confirmer: confirm})
		require.NoError(t, err)

		assert.Equal(t, 5, seen.Incoming)
		assert.Equal(t, 9, seen.Total)
		require.Len(t, seen.Victims, 2)
		assert.Equal(t, "A", seen.Victims[0].DisplayName)
		assert.Equal(t, "B", seen.Victims[1].DisplayName)
		assert.Len(t, out.Evicted, 2)
		assert.Equal(t, []string{"C", "D"}, listNames(t, d, ""))
	})

	t.Run("context ended during confirmation declines", func(t *testing.T) {
		d := newTestDeps(t, 10)
		addSelection(t, d, "A", 6)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		confirm := accumulator.ConfirmFunc(func(ctx context.Context, _ accumulator.EvictionPlan) (bool, error) {
			cancel()
			return false, ctx.Err()
		})
		_, err := d.Add(ctx, AddInput{DisplayName: "B", Content: tokens(6), Confirmer: confirm})
		assert.True(t, errors.Is(err, errors.ErrEvictionDeclined), "got %v", err)
		assert.Equal(t, []string{"A"}, listNames(t, d, ""))
	})

	t.Run("too large never asks", func(t *testing.T) {
		d := newTestDeps(t, 5)
		asked := false
		confirm := accumulator.ConfirmFunc(func(context.Context, accumulator.EvictionPlan) (bool, error) {
			asked = true
			return true, nil
		})
		_, err := d.Add(ctx, AddInput{DisplayName: "X", Content: tokens(6), Confirmer: confirm})
		assert.True(t, errors.Is(err, errors.ErrItemTooLarge), "got %v", err)
		assert.False(t, asked)
	})
}

func TestParseEvictMode(t *testing.T) {
	for in, want := range map[string]EvictMode{"": EvictAsk, "ask": EvictAsk, "YES": EvictYes, " no ": EvictNo} {
		got, err := ParseEvictMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseEvictMode("maybe")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestParseLineRange(t *testing.T) {
	r, err := ParseLineRange("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseLineRange("7")
	require.NoError(t, err)
	assert.Equal(t, &LineRange{Start: 7, End: 7}, r)

	r, err = ParseLineRange(" 3 : 9 ")
	require.NoError(t, err)
	assert.Equal(t, "3:9", r.String())

	for _, bad := range []string{"0:2", "a", "2:1", "1:x"} {
		_, err := ParseLineRange(bad)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), bad)
	}
}

func TestAddDirectory(t *testing.T) {
	d := newTestDeps(t, 1000)
	src := t.TempDir()
	outDir := t.TempDir()

	mock := &pack.MockExecutor{
		Stdout: []byte("1.2.3\n"),
		OnRun: func(args []string) error {
			if out := pack.OutputArg(args); out != "" {
				return os.WriteFile(out, []byte("<file path=\"a.go\">package a</file>\n"), 0600)
			}
			return nil
		},
	}
	d.Packer = pack.New(pack.Options{OutputDir: outDir, Executor: mock, Clock: newStepClock().Now})

	out, err := d.AddDirectory(context.Background(), AddDirectoryInput{Dir: src, Ignore: []string{"*.log"}})
	require.NoError(t, err)

	assert.Equal(t, contextitem.KindDirectory, out.Item.Kind)
	assert.Equal(t, filepath.Base(src)+"/", out.Item.DisplayName)
	assert.Equal(t, src, out.Item.SourcePath)
	assert.Equal(t, outDir, filepath.Dir(out.Package.Path))

	got, err := d.Get(context.Background(), GetInput{ID: out.Item.ID})
	require.NoError(t, err)
	assert.Contains(t, got.Content, "package a")

	calls := mock.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[len(calls)-1].Args, "*.log")
}

func TestAddDirectory_PackerMissing(t *testing.T) {
	d := newTestDeps(t, 1000)
	d.Packer = pack.New(pack.Options{OutputDir: t.TempDir(), Executor: &pack.MockExecutor{Missing: true}})

	_, err := d.AddDirectory(context.Background(), AddDirectoryInput{Dir: t.TempDir()})
	assert.True(t, errors.Is(err, errors.ErrPackerUnavailable), "got %v", err)

	d.Packer = nil
	_, err = d.AddDirectory(context.Background(), AddDirectoryInput{Dir: t.TempDir()})
	assert.True(t, errors.Is(err, errors.ErrPackerUnavailable), "got %v", err)
}
