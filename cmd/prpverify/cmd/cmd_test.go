package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prp-proof/internal/prooftest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeProof(t *testing.T, spec prooftest.Spec, name string, tamper bool) string {
	t.Helper()
	p := prooftest.MustBuild(spec)
	data := p.Data
	if tamper {
		data = p.FlipBit(1, 0)
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, prooftest.WriteFile(path, data))
	return path
}

func TestVerifyCommand(t *testing.T) {
	good := writeProof(t, prooftest.Spec{Number: "M61", Power: 4}, "M61.proof", false)
	out, err := run(t, "verify", "--no-progress", good)
	require.NoError(t, err)
	assert.Contains(t, out, "proof accepted, positive PRP")
	assert.Contains(t, out, "type-5 res64:       0000000000000001")

	bad := writeProof(t, prooftest.Spec{Number: "M61", Power: 4}, "bad.proof", true)
	out, err = run(t, "verify", "--no-progress", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out, "proof rejected")
}

func TestVerifyCommandLedger(t *testing.T) {
	path := writeProof(t, prooftest.Spec{Number: "M31", Power: 3}, "M31.proof", false)
	ledgerDir := filepath.Join(t.TempDir(), "ledger")

	_, err := run(t, "verify", "--no-progress", "--ledger", ledgerDir, path)
	require.NoError(t, err)
	out, err := run(t, "verify", "--no-progress", "--ledger", ledgerDir, "--skip-known", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already verified")
	assert.NotContains(t, out, "server cost")
}

func TestInspectCommand(t *testing.T) {
	path := writeProof(t, prooftest.Spec{Number: "M11/23", Power: 2, Multiplier: 2}, "M11.proof", false)
	out, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "M11/23 (M11)")
	assert.Contains(t, out, "residues:")
	assert.Contains(t, out, "6 of 6")
}

func TestRootsCommand(t *testing.T) {
	out, err := run(t, "roots", "31")
	require.NoError(t, err)
	assert.Contains(t, out, "PRIME")
	assert.Contains(t, out, "hardening exponent: 31 bits")

	_, err = run(t, "roots", "x")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "prpverify dev")
}
