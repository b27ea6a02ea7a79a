package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bobAddr   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	askToken  = "0x1000000000000000000000000000000000000003"
	collToken = "0x1000000000000000000000000000000000000001"
	feeToken  = "0x1000000000000000000000000000000000000002"
)

// runCLI executes the root command with args against the given store and
// returns combined output.
func runCLI(t *testing.T, storePath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--store", storePath))
	err := cmd.Execute()
	return buf.String(), err
}

func mustRunCLI(t *testing.T, storePath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, storePath, args...)
	require.NoError(t, err, out)
	return out
}

func writeOfferFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "offer.yaml")
	content := `
owner: "` + aliceAddr + `"
target: "` + bobAddr + `"
term: 100000
deadline: 4000000000
ask:
  - kind: fungible
    contract: "` + askToken + `"
    amount: "1000"
collateral:
  - kind: fungible
    contract: "` + collToken + `"
    amount: "100"
fee:
  - kind: fungible
    contract: "` + feeToken + `"
    amount: "10"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--format", "xml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInitCommand(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "remand.db")
	out := mustRunCLI(t, storePath, "init")
	assert.Contains(t, out, "initialized store")
	assert.FileExists(t, storePath)
}

func TestLifecycleThroughCLI(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "remand.db")
	offerPath := writeOfferFile(t, dir)

	// Fund and approve both sides.
	mustRunCLI(t, storePath, "mint", "--contract", collToken, "--to", aliceAddr, "--amount", "100")
	mustRunCLI(t, storePath, "mint", "--contract", feeToken, "--to", aliceAddr, "--amount", "10")
	mustRunCLI(t, storePath, "mint", "--contract", askToken, "--to", bobAddr, "--amount", "1000")
	mustRunCLI(t, storePath, "approve", "--contract", collToken, "--owner", aliceAddr, "--amount", "100")
	mustRunCLI(t, storePath, "approve", "--contract", feeToken, "--owner", aliceAddr, "--amount", "10")
	mustRunCLI(t, storePath, "approve", "--contract", askToken, "--owner", bobAddr, "--amount", "1000")

	key := strings.TrimSpace(mustRunCLI(t, storePath, "create", offerPath, "--as", aliceAddr))
	require.Len(t, key, 64, "content-addressed hex key")

	out := mustRunCLI(t, storePath, "show", key)
	assert.Contains(t, out, "State:    Open")
	assert.Contains(t, out, aliceAddr)

	out = mustRunCLI(t, storePath, "accept", key, "--as", bobAddr)
	assert.Contains(t, out, "Accepted")

	// The ask was paid to the owner, directly.
	out = mustRunCLI(t, storePath, "balance", "--contract", askToken, "--holder", aliceAddr)
	assert.Equal(t, "1,000\n", out)

	// Owner repays.
	mustRunCLI(t, storePath, "approve", "--contract", askToken, "--owner", aliceAddr, "--amount", "1000")
	out = mustRunCLI(t, storePath, "repay", key, "--as", aliceAddr)
	assert.Contains(t, out, "Repaid")

	out = mustRunCLI(t, storePath, "balance", "--contract", collToken, "--holder", aliceAddr)
	assert.Equal(t, "100\n", out)

	out = mustRunCLI(t, storePath, "list")
	assert.Contains(t, out, key+"\tRepaid")

	out = mustRunCLI(t, storePath, "events", "--offer", key)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "created")
	assert.Contains(t, lines[1], "accepted")
	assert.Contains(t, lines[2], "repaid")
}

func TestShowJSONFormat(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "remand.db")
	offerPath := writeOfferFile(t, dir)

	mustRunCLI(t, storePath, "mint", "--contract", collToken, "--to", aliceAddr, "--amount", "100")
	mustRunCLI(t, storePath, "mint", "--contract", feeToken, "--to", aliceAddr, "--amount", "10")
	mustRunCLI(t, storePath, "approve", "--contract", collToken, "--owner", aliceAddr, "--amount", "100")
	mustRunCLI(t, storePath, "approve", "--contract", feeToken, "--owner", aliceAddr, "--amount", "10")

	key := strings.TrimSpace(mustRunCLI(t, storePath, "create", offerPath, "--as", aliceAddr))

	out := mustRunCLI(t, storePath, "show", key, "--format", "json")
	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, key, view["key"])
	assert.Equal(t, "Open", view["state"])
	assert.Equal(t, bobAddr, view["target"])
}

func TestAssetsCommand(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "remand.db")
	offerPath := writeOfferFile(t, dir)

	mustRunCLI(t, storePath, "mint", "--contract", collToken, "--to", aliceAddr, "--amount", "100")
	mustRunCLI(t, storePath, "mint", "--contract", feeToken, "--to", aliceAddr, "--amount", "10")
	mustRunCLI(t, storePath, "approve", "--contract", collToken, "--owner", aliceAddr, "--amount", "100")
	mustRunCLI(t, storePath, "approve", "--contract", feeToken, "--owner", aliceAddr, "--amount", "10")

	key := strings.TrimSpace(mustRunCLI(t, storePath, "create", offerPath, "--as", aliceAddr))

	out := mustRunCLI(t, storePath, "assets", key)
	assert.Contains(t, out, "Ask:")
	assert.Contains(t, out, "fungible "+collToken+" x 100")

	out = mustRunCLI(t, storePath, "assets", key, "--format", "json")
	var view map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view["collateral"], 1)
	assert.Equal(t, "100", view["collateral"][0]["amount"])
}

func TestCreateRejectsWrongCaller(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "remand.db")
	offerPath := writeOfferFile(t, dir)

	_, err := runCLI(t, storePath, "create", offerPath, "--as", bobAddr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OwnerMismatch")
}

func TestMintUniqueAndHolder(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "remand.db")
	nft := "0x2000000000000000000000000000000000000001"

	mustRunCLI(t, storePath, "mint", "--kind", "unique", "--contract", nft, "--id", "7", "--to", aliceAddr)
	out := mustRunCLI(t, storePath, "balance", "--kind", "unique", "--contract", nft, "--id", "7")
	assert.Equal(t, aliceAddr+"\n", out)
}
