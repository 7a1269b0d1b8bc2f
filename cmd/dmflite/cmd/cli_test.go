package cmd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores the defaults of all flags, which otherwise persist between executions
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cli struct {
	t    *testing.T
	root string
}

func newCLI(t *testing.T) *cli {
	color.NoColor = true
	return &cli{t: t, root: t.TempDir()}
}

func (c *cli) run(args ...string) (string, error) {
	var buf bytes.Buffer
	resetFlags(rootCmd)
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--root", c.root, "--user", "u1"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func (c *cli) mustRun(args ...string) string {
	out, err := c.run(args...)
	require.NoError(c.t, err, "dmflite %s", strings.Join(args, " "))
	return out
}

func writeLocal(t *testing.T, dir, name, content string) string {
	pth := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(pth), 0755))
	require.NoError(t, ioutil.WriteFile(pth, []byte(content), 0600))
	return pth
}

func TestCLIDocuments(t *testing.T) {
	c := newCLI(t)
	local := t.TempDir()
	const pth = "/u1/Simulation/model.txt"

	out := c.mustRun("init")
	assert.Contains(t, out, "repository ready:")

	src := writeLocal(t, local, "model.txt", "abc")
	out = c.mustRun("file", "upload", src, pth, "--description", "baseline")
	assert.Contains(t, out, ";1.0")

	out = c.mustRun("file", "upload", src, pth)
	assert.Contains(t, out, "unchanged:")

	writeLocal(t, local, "model.txt", "xyz")
	out = c.mustRun("file", "upload", src, pth, "--major", "--comment", "new solver")
	assert.Contains(t, out, ";2.0")

	out = c.mustRun("file", "edit", pth, "--confidence", "validated")
	assert.Contains(t, out, ";2.1")

	out = c.mustRun("file", "meta", pth)
	assert.Contains(t, out, "validated")
	assert.Contains(t, out, "baseline")
	assert.Contains(t, out, "model.txt")

	out = c.mustRun("file", "meta", pth, "--version", "1.0")
	assert.NotContains(t, out, "validated")

	out = c.mustRun("file", "versions", pth)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "2.1\t"))
	assert.True(t, strings.HasPrefix(lines[2], "1.0\t"))

	out = c.mustRun("file", "download", pth, "--version", "1.0")
	assert.Equal(t, "abc", out)

	target := filepath.Join(local, "out", "model.txt")
	c.mustRun("file", "download", pth, target)
	data, err := ioutil.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(data))

	// the working tree holds the latest content
	data, err = ioutil.ReadFile(filepath.Join(c.root, "u1", "Simulation", "model.txt"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(data))

	out = c.mustRun("log", pth)
	assert.Contains(t, out, "new solver")

	export := filepath.Join(local, "history.xlsx")
	out = c.mustRun("log", "--export", export)
	assert.Contains(t, out, "exported 6 entries")
	info, err := os.Stat(export)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	out = c.mustRun("verify")
	assert.Contains(t, out, "ok:")

	out = c.mustRun("rebuild-index")
	assert.Contains(t, out, "indexed 6 history entries")
}

func TestCLIFolders(t *testing.T) {
	c := newCLI(t)
	local := t.TempDir()

	c.mustRun("folder", "create", "/u1/run", "--description", "a run")
	_, err := c.run("folder", "create", "/u1/run")
	assert.True(t, errors.Is(err, status.ErrPathExists))

	writeLocal(t, local, "results/out.json", `{}`)
	c.mustRun("folder", "import", filepath.Join(local, "results"), "/u1/run")

	c.mustRun("folder", "edit", "/u1/run", "--name", "run-1")
	out := c.mustRun("file", "meta", "/u1/run-1")
	assert.Contains(t, out, "a run")

	out = c.mustRun("folder", "list", "/u1/run-1")
	assert.Contains(t, out, "/u1/run-1/results/out.json")

	_, err = c.run("folder", "edit", "/u1/Simulation", "--name", "Sims")
	assert.True(t, errors.Is(err, status.ErrSystemFolder))

	dst := filepath.Join(local, "copy")
	c.mustRun("folder", "download", "/u1/run-1", dst)
	data, err := ioutil.ReadFile(filepath.Join(dst, "results", "out.json"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestCLIBatch(t *testing.T) {
	c := newCLI(t)
	local := t.TempDir()

	writeLocal(t, local, "a.txt", "a")
	writeLocal(t, local, "b.txt", "b")
	manifest := writeLocal(t, local, "batch.yaml", `
- folder: /u1/batch
  description: batch upload
- file: a.txt
  path: /u1/batch/a.txt
- file: b.txt
  path: /u1/missing/b.txt
`)

	out, err := c.run("batch", "upload", manifest)
	assert.True(t, errors.Is(err, status.ErrBatchIncomplete))
	assert.Contains(t, out, "incomplete")

	c.mustRun("folder", "create", "/u1/missing")
	out = c.mustRun("batch", "reconcile")
	assert.Contains(t, out, "complete")
	assert.NotContains(t, out, "incomplete")

	out = c.mustRun("batch", "list")
	assert.Contains(t, out, "/u1/missing/b.txt")

	out = c.mustRun("file", "download", "/u1/missing/b.txt")
	assert.Equal(t, "b", out)
}

func TestCLIPurgeAndProfiling(t *testing.T) {
	c := newCLI(t)
	local := t.TempDir()

	writeLocal(t, local, "a.txt", "a")
	manifest := writeLocal(t, local, "batch.yaml", `
- file: a.txt
  path: /u1/nowhere/a.txt
`)
	_, err := c.run("batch", "upload", manifest)
	require.Error(t, err)

	cpu := filepath.Join(local, "cpu.prof")
	out := c.mustRun("purge", "--dry-run", "--cpuprof", cpu)
	assert.Contains(t, out, "1 blobs scanned, 1 kept, 0 unreferenced")
	info, err := os.Stat(cpu)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
