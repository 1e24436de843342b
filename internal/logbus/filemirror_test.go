package logbus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternlight/devmux/internal/logger"
)

func TestFileMirrorDisabledWithoutDir(t *testing.T) {
	b := New(nil)
	m := NewFileMirror(b, logger.Config{}, nil)
	assert.Nil(t, m)
	m.Close() // nil-safe
}

func TestFileMirrorWritesPerStreamFiles(t *testing.T) {
	b := New(nil)
	dir := t.TempDir()
	m := NewFileMirror(b, logger.Config{Dir: dir}, nil)
	require.NotNil(t, m)

	rec := Record{ProjectDir: "/tmp/demo", Process: "web"}
	stem := mirrorName(rec)
	outFile := filepath.Join(dir, stem+".stdout.log")
	errFile := filepath.Join(dir, stem+".stderr.log")

	b.Publish(Record{ProjectDir: "/tmp/demo", Process: "web", Stream: Stdout, Text: "out line"})
	b.Publish(Record{ProjectDir: "/tmp/demo", Process: "web", Stream: Stderr, Text: "err line"})

	require.Eventually(t, func() bool {
		out, err1 := os.ReadFile(outFile)
		errb, err2 := os.ReadFile(errFile)
		return err1 == nil && err2 == nil && len(out) > 0 && len(errb) > 0
	}, 3*time.Second, 25*time.Millisecond)
	m.Close()

	out, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "out line\n", string(out))

	errOut, err := os.ReadFile(errFile)
	require.NoError(t, err)
	assert.Equal(t, "err line\n", string(errOut))
}

func TestFileMirrorSeparatesSameNameAcrossProjects(t *testing.T) {
	b := New(nil)
	dir := t.TempDir()
	m := NewFileMirror(b, logger.Config{Dir: dir}, nil)
	require.NotNil(t, m)

	a := Record{ProjectDir: "/tmp/alpha", Process: "web", Stream: Stdout, Text: "from alpha"}
	z := Record{ProjectDir: "/tmp/zeta", Process: "web", Stream: Stdout, Text: "from zeta"}
	b.Publish(a)
	b.Publish(z)

	aFile := filepath.Join(dir, mirrorName(a)+".stdout.log")
	zFile := filepath.Join(dir, mirrorName(z)+".stdout.log")
	require.NotEqual(t, aFile, zFile)

	require.Eventually(t, func() bool {
		ab, err1 := os.ReadFile(aFile)
		zb, err2 := os.ReadFile(zFile)
		return err1 == nil && err2 == nil && len(ab) > 0 && len(zb) > 0
	}, 3*time.Second, 25*time.Millisecond)
	m.Close()

	ab, err := os.ReadFile(aFile)
	require.NoError(t, err)
	assert.Equal(t, "from alpha\n", string(ab))

	zb, err := os.ReadFile(zFile)
	require.NoError(t, err)
	assert.Equal(t, "from zeta\n", string(zb))
}
