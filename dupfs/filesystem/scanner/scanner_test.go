package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/dupfs/dupfs/config"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/fingerprint"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deniedFS fails Open and ReadDir on the listed paths
type deniedFS struct {
	billy.Filesystem
	files map[string]bool
	dirs  map[string]bool
}

func (d *deniedFS) Open(name string) (billy.File, error) {
	if d.files[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Filesystem.Open(name)
}

func (d *deniedFS) ReadDir(path string) ([]os.FileInfo, error) {
	if d.dirs[path] {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrPermission}
	}
	return d.Filesystem.ReadDir(path)
}

func newMemTree(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func scanMem(t *testing.T, fs billy.Filesystem, root string, maxDepth int, opts ...Option) *Report {
	t.Helper()
	opts = append([]Option{WithFilesystem(fs), WithWorkers(4)}, opts...)
	report, err := NewScanner(opts...).Scan(context.Background(), root, maxDepth)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func TestScan_HelloWorldScenario(t *testing.T) {
	fs := newMemTree(t, map[string]string{
		"/d/a.txt": "hello",
		"/d/b.txt": "hello",
		"/d/c.txt": "world",
	})

	report := scanMem(t, fs, "/d", 10)

	assert.Equal(t, DuplicateMap{"/d/b.txt": "/d/a.txt"}, report.Duplicates)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", report.Groups[0].Fingerprint)
	assert.Equal(t, "/d", report.Root)
	assert.Equal(t, 10, report.MaxDepth)
	assert.Equal(t, config.PolicyLexical, report.Policy)
	assert.Equal(t, int64(3), report.Stats.FilesHashed)
	assert.Empty(t, report.Skipped)
}

func TestScan_FirstSeenPolicy(t *testing.T) {
	fs := newMemTree(t, map[string]string{
		"/d/a.txt": "hello",
		"/d/b.txt": "hello",
		"/d/c.txt": "world",
	})

	report := scanMem(t, fs, "/d", 10, WithPolicy(PolicyFirstSeen))

	require.Len(t, report.Duplicates, 1)
	for dup, orig := range report.Duplicates {
		assert.ElementsMatch(t, []string{"/d/a.txt", "/d/b.txt"}, []string{dup, orig})
		assert.NotEqual(t, dup, orig)
	}
	assert.NotContains(t, report.Duplicates, "/d/c.txt")
	assert.NotContains(t, report.Duplicates.Originals(), "/d/c.txt")
}

func TestScan_ZeroByteFiles(t *testing.T) {
	fs := newMemTree(t, map[string]string{
		"/d/x.bin": "",
		"/d/y.bin": "",
		"/d/z.bin": "",
	})

	report := scanMem(t, fs, "/d", 10)

	assert.Equal(t, DuplicateMap{
		"/d/y.bin": "/d/x.bin",
		"/d/z.bin": "/d/x.bin",
	}, report.Duplicates)
}

func TestScan_EmptyResults(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll("/empty", 0o755))

		report := scanMem(t, fs, "/empty", 10)
		assert.Empty(t, report.Duplicates)
		assert.Empty(t, report.Groups)
	})

	t.Run("distinct contents", func(t *testing.T) {
		files := make(map[string]string)
		for i := range 20 {
			files[fmt.Sprintf("/d/sub%d/f%d.txt", i%3, i)] = fmt.Sprintf("content-%d", i)
		}

		report := scanMem(t, newMemTree(t, files), "/d", 10)
		assert.Empty(t, report.Duplicates)
		assert.Equal(t, int64(20), report.Stats.FilesHashed)
	})
}

func TestScan_DepthFilter(t *testing.T) {
	fs := newMemTree(t, map[string]string{
		"/d/top.txt":            "same",
		"/d/l1/one.txt":         "same",
		"/d/l1/l2/two.txt":      "same",
		"/d/l1/l2/l3/three.txt": "same",
	})

	tests := []struct {
		maxDepth int
		want     DuplicateMap
	}{
		{1, DuplicateMap{}},
		{2, DuplicateMap{"/d/top.txt": "/d/l1/one.txt"}},
		{3, DuplicateMap{
			"/d/l1/one.txt": "/d/l1/l2/two.txt",
			"/d/top.txt":    "/d/l1/l2/two.txt",
		}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("maxDepth=%d", tt.maxDepth), func(t *testing.T) {
			report := scanMem(t, fs, "/d", tt.maxDepth)
			assert.Equal(t, tt.want, report.Duplicates)
		})
	}

	t.Run("unbounded", func(t *testing.T) {
		report := scanMem(t, fs, "/d", Unbounded)
		assert.Equal(t, DuplicateMap{
			"/d/l1/l2/two.txt": "/d/l1/l2/l3/three.txt",
			"/d/l1/one.txt":    "/d/l1/l2/l3/three.txt",
			"/d/top.txt":       "/d/l1/l2/l3/three.txt",
		}, report.Duplicates)
		assert.Equal(t, Unbounded, report.MaxDepth)
	})

	t.Run("zero means unbounded", func(t *testing.T) {
		report := scanMem(t, fs, "/d", 0)
		assert.Len(t, report.Duplicates, 3)
	})
}

func TestScan_UnreadableFile(t *testing.T) {
	mem := newMemTree(t, map[string]string{
		"/d/a.txt":      "hello",
		"/d/b.txt":      "hello",
		"/d/locked.txt": "hello",
	})
	fs := &deniedFS{Filesystem: mem, files: map[string]bool{"/d/locked.txt": true}}

	report := scanMem(t, fs, "/d", 10)

	assert.Equal(t, DuplicateMap{"/d/b.txt": "/d/a.txt"}, report.Duplicates)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "/d/locked.txt", report.Skipped[0].Path)
	assert.Equal(t, common.UnreadableFile, report.Skipped[0].Kind)
	assert.Equal(t, CausePermission, report.Skipped[0].Cause)
	assert.Equal(t, int64(1), report.Stats.FilesSkipped)
	assert.Equal(t, int64(2), report.Stats.FilesHashed)
}

func TestScan_UnreadableDirectory(t *testing.T) {
	mem := newMemTree(t, map[string]string{
		"/d/a.txt":          "hello",
		"/d/secret/b.txt":   "hello",
		"/d/sibling/c.txt":  "hello",
		"/d/secret/x/d.txt": "hello",
	})
	fs := &deniedFS{Filesystem: mem, dirs: map[string]bool{"/d/secret": true}}

	report := scanMem(t, fs, "/d", 10)

	assert.Equal(t, DuplicateMap{"/d/sibling/c.txt": "/d/a.txt"}, report.Duplicates)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "/d/secret", report.Skipped[0].Path)
	assert.Equal(t, common.UnreadableDirectory, report.Skipped[0].Kind)
	assert.Equal(t, CausePermission, report.Skipped[0].Cause)
	assert.Equal(t, int64(1), report.Stats.DirsSkipped)
}

func TestScan_UnreadableOnDisk(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files regardless of mode bits")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("hello"), 0o000))

	report, err := Scan(context.Background(), dir, 10)
	require.NoError(t, err)

	assert.Equal(t, DuplicateMap{filepath.Join(dir, "b.txt"): filepath.Join(dir, "a.txt")}, report.Duplicates)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, filepath.Join(dir, "c.txt"), report.Skipped[0].Path)
	assert.Equal(t, CausePermission, report.Skipped[0].Cause)
}

func TestSkipCause(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"permission", &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}, CausePermission},
		{"wrapped permission", common.NewPathError(common.UnreadableFile, "/x", common.ErrPermissionDenied), CausePermission},
		{"vanished", &os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, CauseVanished},
		{"other", fmt.Errorf("short read"), CauseIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, causeOf(tt.err))
		})
	}
}

func TestScan_InvalidRoot(t *testing.T) {
	var dispatched atomic.Int64
	progress := WithProgress(func(hashed, discovered int64) { dispatched.Add(1) })

	t.Run("missing root", func(t *testing.T) {
		report, err := NewScanner(progress).Scan(context.Background(), "/does/not/exist", 10)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, common.ErrInvalidRoot)

		kind, ok := common.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, common.InvalidRoot, kind)
	})

	t.Run("root is a file", func(t *testing.T) {
		fs := newMemTree(t, map[string]string{"/d/a.txt": "x"})
		report, err := NewScanner(WithFilesystem(fs), progress).Scan(context.Background(), "/d/a.txt", 10)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, common.ErrInvalidRoot)
	})

	t.Run("root cannot be listed", func(t *testing.T) {
		mem := newMemTree(t, map[string]string{"/d/a.txt": "x"})
		fs := &deniedFS{Filesystem: mem, dirs: map[string]bool{"/d": true}}
		_, err := NewScanner(WithFilesystem(fs), progress).Scan(context.Background(), "/d", 10)
		assert.ErrorIs(t, err, common.ErrInvalidRoot)
	})

	assert.Zero(t, dispatched.Load(), "no work dispatched for an invalid root")
}

func TestScan_RelativeRootOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hello"), 0o644))

	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(orig) })

	report, err := Scan(context.Background(), ".", 10)
	require.NoError(t, err)

	// Paths are fully qualified even for a relative root
	for dup, orig := range report.Duplicates {
		assert.True(t, filepath.IsAbs(dup), dup)
		assert.True(t, filepath.IsAbs(orig), orig)
	}
	assert.Len(t, report.Duplicates, 1)
}

func TestScan_SymlinksAreNotFollowed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	if err := os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	// A cycle back to the root
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "sub", "loop")))

	report, err := Scan(context.Background(), dir, Unbounded)
	require.NoError(t, err)

	assert.Empty(t, report.Duplicates)
	assert.Equal(t, int64(1), report.Stats.FilesHashed)
}

func TestScan_IgnoreFile(t *testing.T) {
	fs := newMemTree(t, map[string]string{
		"/d/.dupfsignore":       "*.log\ncache\n",
		"/d/a.txt":              "hello",
		"/d/b.txt":              "hello",
		"/d/debug.log":          "hello",
		"/d/cache/c.txt":        "hello",
		"/d/sub/.dupfsignore":   "skip.txt\n",
		"/d/sub/skip.txt":       "hello",
		"/d/sub/keep.txt":       "hello",
		"/d/sub/nested/app.log": "hello",
	})

	report := scanMem(t, fs, "/d", 10, WithIgnoreFile(".dupfsignore"))

	assert.Equal(t, DuplicateMap{
		"/d/b.txt":        "/d/a.txt",
		"/d/sub/keep.txt": "/d/a.txt",
	}, report.Duplicates)

	t.Run("disabled", func(t *testing.T) {
		report := scanMem(t, fs, "/d", 10, WithIgnoreFile(""))
		// Seven "hello" files plus both ignore files are hashed
		assert.Len(t, report.Duplicates, 6)
		assert.Equal(t, int64(9), report.Stats.FilesHashed)
	})
}

func TestScan_Cancellation(t *testing.T) {
	files := make(map[string]string)
	for i := range 50 {
		files[fmt.Sprintf("/d/dir%d/file.txt", i)] = "same"
	}
	fs := newMemTree(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewScanner(WithFilesystem(fs)).Scan(ctx, "/d", 10)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_CancelDuringScan(t *testing.T) {
	files := make(map[string]string)
	for i := range 200 {
		files[fmt.Sprintf("/d/dir%d/file%d.txt", i%20, i)] = "same"
	}
	fs := newMemTree(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	scanner := NewScanner(
		WithFilesystem(fs),
		WithWorkers(2),
		WithProgress(func(hashed, discovered int64) {
			once.Do(cancel)
		}),
	)

	report, err := scanner.Scan(ctx, "/d", 10)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_ConcurrentIdenticalFiles(t *testing.T) {
	const n = 300
	files := make(map[string]string)
	for i := range n {
		files[fmt.Sprintf("/d/g%d/f%03d.bin", i%7, i)] = "identical payload"
	}
	files["/d/unique.bin"] = "unique"
	fs := newMemTree(t, files)

	for _, policy := range []OriginalPolicy{PolicyLexical, PolicyFirstSeen} {
		t.Run(policy.String(), func(t *testing.T) {
			report := scanMem(t, fs, "/d", 10, WithPolicy(policy), WithWorkers(16))

			require.Len(t, report.Duplicates, n-1)
			originals := report.Duplicates.Originals()
			require.Len(t, originals, 1, "exactly one original per fingerprint")

			original := originals[0]
			assert.NotContains(t, report.Duplicates, original)
			for dup, orig := range report.Duplicates {
				assert.NotEqual(t, dup, orig, "a file is never its own duplicate")
			}
			assert.NotContains(t, report.Duplicates, "/d/unique.bin")
			assert.Equal(t, int64(n+1), report.Stats.FilesHashed)
		})
	}
}

func TestScan_LexicalIsDeterministic(t *testing.T) {
	files := make(map[string]string)
	for i := range 40 {
		files[fmt.Sprintf("/d/dir%d/f.txt", i)] = fmt.Sprintf("group-%d", i%4)
	}
	fs := newMemTree(t, files)

	first := scanMem(t, fs, "/d", 10, WithWorkers(8))
	for range 5 {
		again := scanMem(t, fs, "/d", 10, WithWorkers(8))
		assert.Equal(t, first.Duplicates, again.Duplicates)
		assert.Equal(t, first.Groups, again.Groups)
		assert.NotEqual(t, first.ID, again.ID)
	}
	assert.Len(t, first.Groups, 4)
}

func TestScan_Progress(t *testing.T) {
	fs := newMemTree(t, map[string]string{
		"/d/a.txt": "1",
		"/d/b.txt": "2",
		"/d/c.txt": "3",
	})

	var calls, maxHashed atomic.Int64
	scanMem(t, fs, "/d", 10, WithProgress(func(hashed, discovered int64) {
		calls.Add(1)
		for {
			cur := maxHashed.Load()
			if hashed <= cur || maxHashed.CompareAndSwap(cur, hashed) {
				break
			}
		}
		assert.LessOrEqual(t, hashed, discovered)
	}))

	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, int64(3), maxHashed.Load())
}

func TestSeenIndex_ClaimIsAtomic(t *testing.T) {
	idx := NewSeenIndex()
	fp, err := fingerprint.Parse("5d41402abc4b2a76b9719d911017c592")
	require.NoError(t, err)

	const racers = 64
	var originals atomic.Int64
	winners := make(chan string, racers)

	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := fmt.Sprintf("/p/%02d", i)
			orig, dup := idx.Claim(fp, path)
			if !dup {
				originals.Add(1)
				assert.Equal(t, path, orig)
			}
			winners <- orig
		}()
	}
	wg.Wait()
	close(winners)

	assert.Equal(t, int64(1), originals.Load())

	committed, ok := idx.Original(fp)
	require.True(t, ok)
	for w := range winners {
		assert.Equal(t, committed, w, "every claim sees the same original")
	}

	groups := idx.Resolve(PolicyFirstSeen)
	require.Len(t, groups, 1)
	assert.Equal(t, committed, groups[0].Original)
	assert.Len(t, groups[0].Duplicates, racers-1)

	lexical := idx.Resolve(PolicyLexical)
	assert.Equal(t, "/p/00", lexical[0].Original)
	assert.Equal(t, 1, idx.Len())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("first-seen")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstSeen, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLexical, p)

	_, err = ParsePolicy("newest")
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.ScannerConfig{
		Workers:        3,
		OriginalPolicy: config.PolicyFirstSeen,
		IgnoreFile:     ".ignore",
	})
	require.NoError(t, err)

	s := NewScanner(opts...)
	assert.Equal(t, 3, s.Workers())
	assert.Equal(t, PolicyFirstSeen, s.policy)
	assert.Equal(t, ".ignore", s.ignoreFile)

	_, err = OptionsFromConfig(config.ScannerConfig{OriginalPolicy: "bogus"})
	assert.Error(t, err)
}
