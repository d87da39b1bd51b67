package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirSavesEachPipelineByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "build.yaml", `
name: build
steps:
  - command: ["echo", "hi"]
`)
	writeFile(t, dir, "deploy.yml", `
name: deploy
steps:
  - command: ["echo", "bye"]
`)
	writeFile(t, dir, "README.md", "not a pipeline")

	s := New()
	require.NoError(t, LoadDir(s, dir))

	names := s.ListPipelines()
	assert.ElementsMatch(t, []string{"build", "deploy"}, names)
}

func TestLoadDirRejectsInvalidPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", `
steps:
  - command: []
`)

	s := New()
	assert.Error(t, LoadDir(s, dir))
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}
