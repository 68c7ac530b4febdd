package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestDiscoverJobs_Directories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "source.png"))
	touch(t, filepath.Join(root, "destination.jpg"))
	touch(t, filepath.Join(root, "pairs.yaml"))

	touch(t, filepath.Join(root, "b", "src.png"))
	touch(t, filepath.Join(root, "b", "dst.png"))
	touch(t, filepath.Join(root, "b", "pairs.json"))

	// Incomplete: no pairs file.
	touch(t, filepath.Join(root, "c", "source.png"))
	touch(t, filepath.Join(root, "c", "dest.png"))

	// Not an image.
	touch(t, filepath.Join(root, "d", "source.txt"))
	touch(t, filepath.Join(root, "d", "dest.png"))
	touch(t, filepath.Join(root, "d", "pairs.yaml"))

	jobs, err := DiscoverJobs([]string{root}, false, "out")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, filepath.Join(root, "source.png"), jobs[0].Source)
	assert.Equal(t, filepath.Join(root, "destination.jpg"), jobs[0].Destination)
	assert.Equal(t, filepath.Join("out", filepath.Base(root)), jobs[0].Output)

	jobs, err = DiscoverJobs([]string{root}, true, "out")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	names := []string{jobs[0].Name, jobs[1].Name}
	assert.Contains(t, names, "b")
	for _, j := range jobs {
		if j.Name == "b" {
			assert.Equal(t, filepath.Join(root, "b", "pairs.json"), j.Pairs)
			assert.Equal(t, filepath.Join("out", "b"), j.Output)
		}
	}
}

func TestDiscoverJobs_Manifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: [{name: m, source: s.png, destination: d.png, pairs: p.yaml}]"), 0o600))

	jobs, err := DiscoverJobs([]string{path}, false, "frames")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "m", jobs[0].Name)
	assert.Equal(t, filepath.Join(dir, "s.png"), jobs[0].Source)
	assert.Equal(t, filepath.Join("frames", "m"), jobs[0].Output)
}

func TestDiscoverJobs_Errors(t *testing.T) {
	_, err := DiscoverJobs([]string{"/nonexistent/path"}, false, "out")
	require.ErrorContains(t, err, "cannot access")

	jobs, err := DiscoverJobs(nil, false, "out")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
