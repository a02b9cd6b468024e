package ledger

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prp-proof/internal/prooftest"
	"prp-proof/proof"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestPutGet(t *testing.T) {
	l := openTemp(t)
	_, ok, err := l.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := Record{Digest: "abc", Path: "M31.proof", Number: "M31", Valid: true, PRP: "positive"}
	require.NoError(t, l.Put(rec))
	got, ok, err := l.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "M31", got.Number)
	assert.True(t, got.Valid)

	assert.Error(t, l.Put(Record{}))
}

func TestListInMemory(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	defer l.Close()

	for _, d := range []string{"bb", "aa", "cc"} {
		require.NoError(t, l.Put(Record{Digest: d}))
	}
	recs, err := l.List()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "aa", recs[0].Digest)
	assert.Equal(t, "cc", recs[2].Digest)
}

func TestRecordFromVerification(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M11/23", Power: 2})
	digest, err := Digest(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Len(t, digest, 64)

	v, err := proof.New(proof.Options{Logger: &log.Logger{Handler: discard.Default}})
	require.NoError(t, err)
	res, err := v.Verify(context.Background(), bytes.NewReader(p.Data), -1)
	require.NoError(t, err)

	rec := NewRecord(digest, "M11.proof", res, nil)
	assert.True(t, rec.Valid)
	assert.Equal(t, "positive", rec.PRP)
	assert.Equal(t, "M11/23", rec.Number)
	assert.Equal(t, res.Type5Res64, rec.Type5Res64)

	failed := NewRecord(digest, "M11.proof", res, proof.ErrResidueRead)
	assert.False(t, failed.Valid)
	assert.Empty(t, failed.PRP)
	assert.NotEmpty(t, failed.Error)

	l := openTemp(t)
	require.NoError(t, l.Put(rec))
	path := filepath.Join(t.TempDir(), "copy.proof")
	require.NoError(t, prooftest.WriteFile(path, p.Data))
	fileDigest, err := DigestFile(path)
	require.NoError(t, err)
	_, ok, err := l.Get(fileDigest)
	require.NoError(t, err)
	assert.True(t, ok, "a renamed copy has the same digest")
}
