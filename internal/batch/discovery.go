package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/MeKo-Tech/morpho/internal/utils"
)

// Job directories hold their inputs under these base names.
var (
	sourceNames = []string{"source", "src"}
	destNames   = []string{"destination", "dest", "dst"}
	pairsNames  = []string{"pairs.yaml", "pairs.yml", "pairs.json"}
)

// DiscoverJobs turns command line arguments into jobs. A file argument is read
// as a manifest; a directory argument is scanned for job directories, each
// containing a source image, a destination image and a pairs file. Output for
// discovered jobs, and for manifest jobs that leave it unset, goes to
// "<outRoot>/<name>".
func DiscoverJobs(args []string, recursive bool, outRoot string) ([]Job, error) {
	var jobs []Job
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			m, err := LoadManifest(arg)
			if err != nil {
				return nil, err
			}
			for _, j := range m.Jobs {
				if j.Output == "" {
					j.Output = filepath.Join(outRoot, j.Name)
				}
				jobs = append(jobs, j)
			}
			continue
		}
		found, err := discoverInDirectory(arg, recursive, outRoot)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, found...)
	}
	return jobs, nil
}

// discoverInDirectory walks dir and returns a job for every directory that
// holds a complete input set.
func discoverInDirectory(dir string, recursive bool, outRoot string) ([]Job, error) {
	var jobs []Job

	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if !recursive && path != dir {
			return filepath.SkipDir
		}
		if job, ok := jobFromDirectory(path, outRoot); ok {
			jobs = append(jobs, job)
		}
		return nil
	}

	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	return jobs, nil
}

func jobFromDirectory(dir, outRoot string) (Job, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Job{}, false
	}
	var src, dst, prs string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		switch {
		case src == "" && utils.IsSupportedImage(name) && slices.Contains(sourceNames, stem):
			src = filepath.Join(dir, name)
		case dst == "" && utils.IsSupportedImage(name) && slices.Contains(destNames, stem):
			dst = filepath.Join(dir, name)
		case prs == "" && slices.Contains(pairsNames, strings.ToLower(name)):
			prs = filepath.Join(dir, name)
		}
	}
	if src == "" || dst == "" || prs == "" {
		return Job{}, false
	}
	name := filepath.Base(dir)
	return Job{
		Name:        name,
		Source:      src,
		Destination: dst,
		Pairs:       prs,
		Output:      filepath.Join(outRoot, name),
	}, true
}
