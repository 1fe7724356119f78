package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const fairnessRego = `package international.eu_ai_act.v1.fairness

# required_metrics: fairness.score, content_safety.score

default allow := false
`

func loadedTestTree(t *testing.T) *Loader {
	t.Helper()
	root := t.TempDir()

	writePolicy(t, root, "international/eu_ai_act/v1/fairness/fairness.rego", fairnessRego)
	writePolicy(t, root, "international/eu_ai_act/v1/safety/safety.rego",
		"package international.eu_ai_act.v1.safety\n\n# required_metrics: content_safety.score\n\ndefault allow := false\n")
	writePolicy(t, root, "international/eu_ai_act/v1/safety/metadata.yaml",
		"required_metrics:\n  - metrics.content_safety.score\n  - metrics.manipulation.score\ndescription: safety rules\n")
	writePolicy(t, root, "international/eu_ai_act/v2/fairness/fairness.rego",
		"package international.eu_ai_act.v2.fairness\n\n# required_metrics: fairness.score\n\ndefault allow := false\n")
	writePolicy(t, root, "national/germany/bdsg/v1/privacy.rego",
		"package national.germany.bdsg.v1\n\ndefault allow := true\n")
	// Non-policy files are ignored by the walk.
	writePolicy(t, root, "international/eu_ai_act/v1/fairness/README.txt", "notes")

	l := NewLoader(root)
	require.NoError(t, l.Load())
	return l
}

func TestLoaderIndexesPolicyFilesOnly(t *testing.T) {
	l := loadedTestTree(t)

	folders := l.Folders()
	assert.Contains(t, folders, "international/eu_ai_act/v1/fairness")
	assert.Contains(t, folders, "national/germany/bdsg/v1")

	files := l.PoliciesByFolder("international/eu_ai_act/v1/fairness")
	require.Len(t, files, 1)
	assert.Equal(t, "fairness.rego", filepath.Base(files[0].Path))
	assert.Equal(t, "v1", files[0].Version)
}

func TestLoaderCommentMetrics(t *testing.T) {
	l := loadedTestTree(t)

	files := l.PoliciesByFolder("international/eu_ai_act/v1/fairness")
	require.Len(t, files, 1)
	assert.Equal(t, []string{"fairness.score", "content_safety.score"}, files[0].RequiredMetrics)
}

func TestLoaderSidecarWinsOverComments(t *testing.T) {
	l := loadedTestTree(t)

	files := l.PoliciesByFolder("international/eu_ai_act/v1/safety")
	require.Len(t, files, 1)
	assert.Equal(t,
		[]string{"metrics.content_safety.score", "metrics.manipulation.score"},
		files[0].RequiredMetrics)
}

func TestFindMatchingFoldersCaseInsensitive(t *testing.T) {
	l := loadedTestTree(t)

	matches := l.FindMatchingFolders("EU_AI_ACT")
	assert.Equal(t, []string{
		"international/eu_ai_act/v1/fairness",
		"international/eu_ai_act/v1/safety",
		"international/eu_ai_act/v2/fairness",
	}, matches)

	assert.Empty(t, l.FindMatchingFolders("nonexistent_framework"))
}

func TestRequiredMetricsForFolderUnionsSubfolders(t *testing.T) {
	l := loadedTestTree(t)

	metrics := l.RequiredMetricsForFolder("international/eu_ai_act/v1")
	assert.Equal(t, []string{
		"content_safety.score",
		"fairness.score",
		"metrics.content_safety.score",
		"metrics.manipulation.score",
	}, metrics)
}

func TestPackagePath(t *testing.T) {
	l := NewLoader("unused")
	assert.Equal(t, "international.eu_ai_act.v1.fairness",
		l.PackagePath("international/eu_ai_act/v1/fairness"))
	assert.Equal(t, "a.b", l.PackagePath("/a/b/"))
}

func TestLatestVersionFolder(t *testing.T) {
	folders := []string{
		"international/eu_ai_act/v1/fairness",
		"international/eu_ai_act/v2/fairness",
		"international/eu_ai_act/unversioned",
	}
	assert.Equal(t, "international/eu_ai_act/v2/fairness", LatestVersionFolder(folders))
	assert.Equal(t, "", LatestVersionFolder(nil))
	assert.Equal(t, "only/one", LatestVersionFolder([]string{"only/one"}))
}

func TestLoaderReload(t *testing.T) {
	root := t.TempDir()
	writePolicy(t, root, "cat/v1/a.rego", "package cat.v1\n\ndefault allow := true\n")

	l := NewLoader(root)
	require.NoError(t, l.Load())
	assert.Len(t, l.Folders(), 1)

	writePolicy(t, root, "cat/v2/b.rego", "package cat.v2\n\ndefault allow := true\n")
	require.NoError(t, l.Load())
	assert.Len(t, l.Folders(), 2)
}
