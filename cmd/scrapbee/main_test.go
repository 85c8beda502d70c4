package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &cli{t: t, dir: t.TempDir()}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"scrapbee", "--backend", "fs", "--dir", c.dir}, args...)
	code := Run(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(args...)
	require.Equal(c.t, exitOK, code, "stderr: %s", errOut)
	return out
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "scrapbee "), out)
}

func TestAddListTreeStat(t *testing.T) {
	c := newCLI(t)

	id := strings.TrimSpace(c.mustRun("add", "https://example.com/page", "--folder", "Reading", "--todo", "todo"))
	require.Len(t, id, 32)

	_, err := os.Stat(filepath.Join(c.dir, "Cloud", "index.jsonl"))
	require.NoError(t, err)

	out := c.mustRun("list", "--filter", `node.type == "bookmark"`)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "https://example.com/page")

	out = c.mustRun("tree")
	assert.Contains(t, out, "[folder] Reading")
	assert.Contains(t, out, "  [bookmark] example.com  "+id)
	assert.Contains(t, out, "TODO")

	out = c.mustRun("stat")
	assert.Contains(t, out, "JSON Scrapbook v1")
	assert.Contains(t, out, "nodes:     2")
	assert.Contains(t, out, "digest:    sha256:")

	out = c.mustRun("validate")
	assert.Contains(t, out, "ok: 2 node(s)")
}

func TestMkgroupAndRm(t *testing.T) {
	c := newCLI(t)

	group := strings.TrimSpace(c.mustRun("mkgroup", "Work/Inbox"))
	again := strings.TrimSpace(c.mustRun("mkgroup", "work\\inbox"))
	assert.Equal(t, group, again)

	note := strings.TrimSpace(c.mustRun("add", "--text", "remember the milk", "--folder", "Work/Inbox"))
	_, err := os.Stat(filepath.Join(c.dir, "Cloud", note+".notes"))
	require.NoError(t, err)

	out := c.mustRun("rm", group)
	assert.Contains(t, out, "removed 2 node(s)")
	_, err = os.Stat(filepath.Join(c.dir, "Cloud", note+".notes"))
	assert.True(t, os.IsNotExist(err))

	code, _, errOut := c.run("rm", group)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "node not found")
}

func TestNotesAndArchive(t *testing.T) {
	c := newCLI(t)
	id := strings.TrimSpace(c.mustRun("add", "https://example.com", "--text", "clipped paragraph"))
	bookmark := strings.TrimSpace(c.mustRun("add", "https://example.org"))

	c.mustRun("notes", "set", id, "first thoughts")
	assert.Equal(t, "first thoughts\n", c.mustRun("notes", "get", id))

	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte("<html><body>saved</body></html>"), 0600))
	c.mustRun("archive", "put", id, page)
	assert.Equal(t, "<html><body>saved</body></html>", c.mustRun("archive", "get", id))

	pdf := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4\x00\x01binary"), 0600))
	c.mustRun("archive", "put", id, pdf)
	dest := filepath.Join(t.TempDir(), "out.pdf")
	c.mustRun("archive", "get", id, "-o", dest)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4\x00\x01binary"), got)

	out := c.mustRun("list", "--filter", `node.content_type == "application/pdf" && node.has_notes`)
	assert.Contains(t, out, id)

	code, _, errOut := c.run("archive", "put", bookmark, page)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "invalid node")
	_, err = os.Stat(filepath.Join(c.dir, "Cloud", bookmark+".data"))
	assert.True(t, os.IsNotExist(err))

	code, _, errOut = c.run("archive", "get", "UNKNOWN")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "node not found")
}

func TestExport(t *testing.T) {
	c := newCLI(t)
	id := strings.TrimSpace(c.mustRun("add", "https://go.dev", "--folder", "Lang"))

	var doc exportDoc
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("export")), &doc))
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "Lang", doc.Nodes[0].Name)
	require.Len(t, doc.Nodes[0].Children, 1)
	assert.Equal(t, id, doc.Nodes[0].Children[0].UUID)

	var ydoc exportDoc
	require.NoError(t, yaml.Unmarshal([]byte(c.mustRun("export", "--format", "yaml")), &ydoc))
	assert.Equal(t, doc, ydoc)

	code, _, _ := c.run("export", "--format", "xml")
	assert.Equal(t, exitFailure, code)
}

func TestMalformedIndex(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.MkdirAll(filepath.Join(c.dir, "Cloud"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "Cloud", "index.jsonl"), []byte("{garbage"), 0600))

	code, _, errOut := c.run("--strict", "stat")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "corrupt index document")

	out := c.mustRun("stat")
	assert.Contains(t, out, "nodes:     0")
}

func TestNotAuthorizedExitCode(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCRAPBEE_BACKEND_HTTP_BASE_URL", "http://127.0.0.1:1/dav")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"scrapbee", "--backend", "http", "stat"}, &stdout, &stderr)
	assert.Equal(t, exitNotAuthorized, code)
	assert.Contains(t, stderr.String(), "not authorized")
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)
	code, _, _ := c.run("frobnicate")
	assert.Equal(t, exitFailure, code)
	code, _, _ = c.run("rm")
	assert.Equal(t, exitFailure, code)
}
