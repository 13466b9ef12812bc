// Package testutil provides a throwaway workspace for command tests: a temp
// directory holding a results dir and config files, plus file assertions.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	consts "github.com/khanhnv2901/netguard/internal/shared/constants"
	"github.com/khanhnv2901/netguard/internal/shared/security"
)

// TestEnv is a per-test workspace rooted at TmpDir.
type TestEnv struct {
	TmpDir     string
	ResultsDir string
	Operator   string

	t        *testing.T
	cleanups []func()
}

// NewTestEnv creates TmpDir/results. The directory itself is removed by the
// testing package; Cleanup only runs hooks added with AddCleanup.
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	root := t.TempDir()
	env := &TestEnv{
		TmpDir:     root,
		ResultsDir: filepath.Join(root, "results"),
		Operator:   "test-operator",
		t:          t,
	}
	if err := os.MkdirAll(env.ResultsDir, consts.DefaultDirPerm); err != nil {
		t.Fatalf("create results dir: %v", err)
	}
	return env
}

func (e *TestEnv) WithOperator(operator string) *TestEnv {
	e.Operator = operator
	return e
}

// AddCleanup registers fn; hooks run last-added first.
func (e *TestEnv) AddCleanup(fn func()) {
	e.cleanups = append(e.cleanups, fn)
}

func (e *TestEnv) Cleanup() {
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i]()
	}
	e.cleanups = nil
}

// Path resolves rel inside TmpDir and fails the test if it would escape.
func (e *TestEnv) Path(rel string) string {
	e.t.Helper()
	p, err := security.ResolveWithin(e.TmpDir, rel)
	if err != nil {
		e.t.Fatalf("test path %q: %v", rel, err)
	}
	return p
}

// RunPath is the directory a run's report and digests live in.
func (e *TestEnv) RunPath(runID string) string {
	return filepath.Join(e.ResultsDir, runID)
}

// WriteConfig writes a config file into TmpDir; viper picks the format from the extension.
func (e *TestEnv) WriteConfig(name, content string) string {
	e.t.Helper()
	return e.CreateFile(name, []byte(content))
}

// CreateFile writes content at rel, creating parent directories.
func (e *TestEnv) CreateFile(rel string, content []byte) string {
	e.t.Helper()

	p := e.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), consts.DefaultDirPerm); err != nil {
		e.t.Fatalf("create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, content, consts.DefaultFilePerm); err != nil {
		e.t.Fatalf("write %s: %v", rel, err)
	}
	return p
}

func (e *TestEnv) ReadFile(rel string) []byte {
	e.t.Helper()

	data, err := os.ReadFile(e.Path(rel))
	if err != nil {
		e.t.Fatalf("read %s: %v", rel, err)
	}
	return data
}

func (e *TestEnv) FileExists(rel string) bool {
	e.t.Helper()
	_, err := os.Stat(e.Path(rel))
	return err == nil
}

func (e *TestEnv) MustExist(rel string) {
	e.t.Helper()
	if !e.FileExists(rel) {
		e.t.Fatalf("expected %s to exist", rel)
	}
}

func (e *TestEnv) MustNotExist(rel string) {
	e.t.Helper()
	if e.FileExists(rel) {
		e.t.Fatalf("expected %s not to exist", rel)
	}
}
