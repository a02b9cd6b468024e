package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prp-proof/internal/config"
	"prp-proof/internal/prooftest"
)

func newTestWatcher(t *testing.T) (*watcher, *bytes.Buffer) {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Load(v)
	require.NoError(t, err)
	cfg.Verify.Progress = false

	var out bytes.Buffer
	s, err := newSession(cfg, &out)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	w, err := newWatcher(context.Background(), s, "*.proof")
	require.NoError(t, err)
	t.Cleanup(func() { w.close() })
	return w, &out
}

func TestWatcherMatches(t *testing.T) {
	w, _ := newTestWatcher(t)
	assert.True(t, w.matches("/tmp/x/M61.proof"))
	assert.False(t, w.matches("/tmp/x/M61.proof.tmp"))
	assert.False(t, w.matches("/tmp/x/notes.txt"))

	_, err := newWatcher(context.Background(), w.s, "[")
	assert.Error(t, err)
}

func TestWatcherVerifiesOncePerModification(t *testing.T) {
	w, out := newTestWatcher(t)
	path := writeProof(t, prooftest.Spec{Number: "M31", Power: 3}, "M31.proof", false)

	w.verify(path)
	assert.Contains(t, out.String(), "proof accepted, positive PRP")

	out.Reset()
	w.verify(path)
	assert.Empty(t, out.String())

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	w.verify(path)
	assert.Contains(t, out.String(), "proof accepted")
}

func TestWatcherWaitsForIncompleteProof(t *testing.T) {
	w, out := newTestWatcher(t)
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 4})
	path := filepath.Join(t.TempDir(), "M61.proof")
	require.NoError(t, prooftest.WriteFile(path, p.Data[:p.Offset(3)]))

	w.verify(path)
	assert.Empty(t, out.String())
	_, seen := w.seen.Get(path)
	assert.False(t, seen)

	require.NoError(t, prooftest.WriteFile(path, p.Data))
	w.verify(path)
	assert.Contains(t, out.String(), "proof accepted")
}
