package walker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover_FindsMarkdownAndTextFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "# A")
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "c.pdf"), "ignored")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.md", files[0].RelativePath)
	assert.Equal(t, "b.txt", files[1].RelativePath)
}

func TestDiscover_SkipsHiddenFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden.md"), "hidden")
	writeFile(t, filepath.Join(root, "visible.md"), "visible")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "visible.md", files[0].RelativePath)
}

func TestDiscover_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".git", "config.md"), "ignored")
	writeFile(t, filepath.Join(root, "docs", "readme.md"), "kept")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("docs", "readme.md"), files[0].RelativePath)
}

func TestDiscover_RecursesSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b", "c.md"), "nested")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("a", "b", "c.md"), files[0].RelativePath)
}

func TestDiscover_MTimeIsNonzero(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "content")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.NotZero(t, files[0].MTime)
}

func TestDiscover_ResultsAreSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.md"), "z")
	writeFile(t, filepath.Join(root, "a.md"), "a")
	writeFile(t, filepath.Join(root, "m.md"), "m")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.md", files[0].RelativePath)
	assert.Equal(t, "m.md", files[1].RelativePath)
	assert.Equal(t, "z.md", files[2].RelativePath)
}

func TestDiscover_EmptyDirectoryReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	files, err := Discover(root)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_SkipsBrokenSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.md"), filepath.Join(root, "broken.md")))

	files, err := Discover(root)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_SkipsSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop")))
	writeFile(t, filepath.Join(root, "sub", "real.md"), "real")

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("sub", "real.md"), files[0].RelativePath)
}

func TestDiscover_FollowsSymlinkToSupportedFileOutsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "external.md"), "external content")
	require.NoError(t, os.Symlink(filepath.Join(outside, "external.md"), filepath.Join(root, "link.md")))

	files, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "link.md", files[0].RelativePath)
}

func TestLoad_ReadsContentAndExtractsTitle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "# My Title\n\nbody text")

	discovered, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, discovered, 1)

	loaded, err := Load(context.Background(), discovered)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "My Title", loaded[0].Title)
	assert.Contains(t, loaded[0].Content, "body text")
}

func TestLoad_SkipsUnreadableFiles(t *testing.T) {
	discovered := []DiscoveredFile{{RelativePath: "missing.md", AbsolutePath: "/no/such/file.md"}}
	loaded, err := Load(context.Background(), discovered)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestExtractTitle_FromHeading(t *testing.T) {
	assert.Equal(t, "Hello World", ExtractTitle("# Hello World\nbody", "notes.md"))
}

func TestExtractTitle_SkipsEmptyHeading(t *testing.T) {
	assert.Equal(t, "notes", ExtractTitle("# \nbody", "notes.md"))
}

func TestExtractTitle_FallsBackToFilename(t *testing.T) {
	assert.Equal(t, "notes", ExtractTitle("no heading here", "notes.md"))
}

func TestExtractTitle_FallsBackToUntitledWhenNoStem(t *testing.T) {
	assert.Equal(t, "untitled", ExtractTitle("no heading", ""))
}
