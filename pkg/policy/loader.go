// Package policy implements policy bundle discovery on disk and the driver
// for the external policy decision engine.
//
// Policy bundles live in a rooted directory tree organized as
// {category}/{subcategory}/{version}/..., e.g.
// "international/eu_ai_act/v1/fairness". Rule files declare the evaluator
// metrics they require either in structured comments or in a metadata.yaml
// sidecar; the sidecar wins on conflict.
package policy

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// Policy file extensions the loader discovers.
var policyExtensions = map[string]bool{
	".rego": true,
	".json": true, // CEL rule bundles
}

const sidecarName = "metadata.yaml"

var versionSegment = regexp.MustCompile(`^v\d+$`)

// requiredMetricsComment matches the in-file declaration convention:
//
//	# required_metrics: fairness.score, content_safety.score
var requiredMetricsComment = regexp.MustCompile(`^[#/]+\s*required_metrics:\s*(.+)$`)

// File is one discovered policy file.
type File struct {
	Path            string   `json:"path"`     // absolute path
	RelPath         string   `json:"rel_path"` // path relative to the root
	Folder          string   `json:"folder"`   // containing folder, relative
	Category        string   `json:"category"` // folder with version segments intact
	Version         string   `json:"version"`  // "v1" style segment, if any
	RequiredMetrics []string `json:"required_metrics,omitempty"`
}

// sidecarMetadata is the metadata.yaml schema.
type sidecarMetadata struct {
	RequiredMetrics []string `yaml:"required_metrics"`
	Description     string   `yaml:"description"`
}

// Loader indexes a policy root directory. The snapshot is immutable after
// Load; concurrent readers need no synchronization beyond the guard used
// for explicit reloads.
type Loader struct {
	mu      sync.RWMutex
	root    string
	files   []File
	folders map[string][]int // folder -> indexes into files
}

// NewLoader creates a loader for the given policy root.
func NewLoader(root string) *Loader {
	return &Loader{root: root, folders: make(map[string][]int)}
}

// Root returns the policy root directory.
func (l *Loader) Root() string { return l.root }

// Load walks the root recursively and snapshots every policy file.
// Calling Load again replaces the snapshot (explicit reload).
func (l *Loader) Load() error {
	const op = "policy.Load"

	var files []File
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !policyExtensions[filepath.Ext(d.Name())] {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		folder := ""
		if idx := strings.LastIndex(rel, "/"); idx >= 0 {
			folder = rel[:idx]
		}
		f := File{
			Path:     path,
			RelPath:  rel,
			Folder:   folder,
			Category: folder,
			Version:  versionOf(folder),
		}
		f.RequiredMetrics = l.requiredMetrics(path, folder)
		files = append(files, f)
		return nil
	})
	if err != nil {
		return evaluation.Errorf(evaluation.KindPolicyEngine, op, "walk %s: %v", l.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	folders := make(map[string][]int)
	for i, f := range files {
		folders[f.Folder] = append(folders[f.Folder], i)
	}

	l.mu.Lock()
	l.files = files
	l.folders = folders
	l.mu.Unlock()
	return nil
}

// versionOf extracts the "v1"-style segment from a folder path.
func versionOf(folder string) string {
	for _, seg := range strings.Split(folder, "/") {
		if versionSegment.MatchString(seg) {
			return seg
		}
	}
	return ""
}

// requiredMetrics merges the in-file comment declaration with the folder
// sidecar; the sidecar wins on conflict.
func (l *Loader) requiredMetrics(path, folder string) []string {
	metrics := parseCommentMetrics(path)
	sidecar := filepath.Join(l.root, filepath.FromSlash(folder), sidecarName)
	if data, err := os.ReadFile(sidecar); err == nil {
		var meta sidecarMetadata
		if err := yaml.Unmarshal(data, &meta); err == nil && len(meta.RequiredMetrics) > 0 {
			metrics = meta.RequiredMetrics
		}
	}
	return dedupe(metrics)
}

func parseCommentMetrics(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var metrics []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := requiredMetricsComment.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		for _, part := range strings.Split(m[1], ",") {
			if p := strings.TrimSpace(part); p != "" {
				metrics = append(metrics, p)
			}
		}
	}
	return metrics
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// FindMatchingFolders resolves a selector (short alias like "eu_ai_act" or
// an explicit category path) to concrete folders by case-insensitive
// substring match, in lexicographic order.
func (l *Loader) FindMatchingFolders(selector string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	needle := strings.ToLower(strings.Trim(selector, "/"))
	var matches []string
	for folder := range l.folders {
		if strings.Contains(strings.ToLower(folder), needle) {
			matches = append(matches, folder)
		}
	}
	sort.Strings(matches)
	return matches
}

// PoliciesByFolder returns the policy files directly inside folder.
func (l *Loader) PoliciesByFolder(folder string) []File {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idxs := l.folders[folder]
	out := make([]File, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, l.files[i])
	}
	return out
}

// RequiredMetricsForFolder unions the declared required_metrics of every
// policy file within folder, including nested subfolders.
func (l *Loader) RequiredMetricsForFolder(folder string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var metrics []string
	prefix := folder + "/"
	for _, f := range l.files {
		if f.Folder == folder || strings.HasPrefix(f.Folder, prefix) {
			metrics = append(metrics, f.RequiredMetrics...)
		}
	}
	metrics = dedupe(metrics)
	sort.Strings(metrics)
	return metrics
}

// PackagePath derives the dotted engine query path for a folder, e.g.
// "international/eu_ai_act/v1/fairness" -> "international.eu_ai_act.v1.fairness".
func (l *Loader) PackagePath(folder string) string {
	return strings.ReplaceAll(strings.Trim(folder, "/"), "/", ".")
}

// Folders lists every indexed folder in lexicographic order.
func (l *Loader) Folders() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.folders))
	for f := range l.folders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// LatestVersionFolder picks the folder with the highest version segment
// among the matches, using semantic version ordering on the numeric part.
// Folders without a version segment sort lowest.
func LatestVersionFolder(folders []string) string {
	if len(folders) == 0 {
		return ""
	}
	best := folders[0]
	bestVer := folderVersion(best)
	for _, f := range folders[1:] {
		v := folderVersion(f)
		if bestVer == nil || (v != nil && v.GreaterThan(bestVer)) {
			best, bestVer = f, v
		}
	}
	return best
}

func folderVersion(folder string) *semver.Version {
	seg := versionOf(folder)
	if seg == "" {
		return nil
	}
	v, err := semver.NewVersion(strings.TrimPrefix(seg, "v"))
	if err != nil {
		return nil
	}
	return v
}
