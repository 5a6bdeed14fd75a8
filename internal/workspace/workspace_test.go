package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraide/oraml/internal/querydb"
)

func writeFile(t *testing.T, root, rel, text string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestScanMatchesIncludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.yaml", "A: 1\n")
	writeFile(t, root, "rules/b.miniyaml", "B: 2\n")
	writeFile(t, root, "rules/sub/c.yaml", "C: 3\n")
	writeFile(t, root, "notes.txt", "not miniyaml")

	db := querydb.NewDatabase()
	ids, err := Scan(db, root, []string{"**/*.yaml", "**/*.miniyaml"})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	names := make(map[string]bool)
	for _, id := range ids {
		name, ok := db.FileName(id)
		require.True(t, ok)
		names[name] = true
	}
	assert.True(t, names["a.yaml"])
	assert.True(t, names["rules/b.miniyaml"])
	assert.True(t, names["rules/sub/c.yaml"])

	// The contents landed in the database.
	id, ok := db.FileIdByName("rules/sub/c.yaml")
	require.True(t, ok)
	text, _ := db.FileText(id)
	assert.Equal(t, "C: 3\n", text)
}

func TestScanSkipsGitDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/objects/x.yaml", "ignored: true\n")
	writeFile(t, root, "a.yaml", "A: 1\n")

	db := querydb.NewDatabase()
	ids, err := Scan(db, root, []string{"**/*.yaml"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestScanNarrowGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rules/a.yaml", "A: 1\n")
	writeFile(t, root, "maps/b.yaml", "B: 2\n")

	db := querydb.NewDatabase()
	ids, err := Scan(db, root, []string{"rules/**/*.yaml"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	name, _ := db.FileName(ids[0])
	assert.Equal(t, "rules/a.yaml", name)
}

func TestNormalizeURI(t *testing.T) {
	root := t.TempDir()
	abs, err := filepath.Abs(root)
	require.NoError(t, err)

	got := NormalizeURI("file://"+abs+"/rules/a.yaml", root)
	assert.Equal(t, "rules/a.yaml", got)

	// Outside the root the full path is kept.
	got = NormalizeURI("file:///elsewhere/b.yaml", root)
	assert.Equal(t, "/elsewhere/b.yaml", got)
}
