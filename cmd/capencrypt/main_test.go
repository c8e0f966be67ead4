package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const scenarios = "../../harness/testdata/scenarios"

func execute(args ...string) (out string, err error) {
	var buf bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	out = buf.String()
	return
}

func TestRootCommand(t *testing.T) {
	assert := assert.New(t)

	cmd := NewRootCommand()
	assert.Equal("capencrypt", cmd.Use)

	for _, name := range []string{"run", "classify", "perms", "defines"} {
		sub, _, err := cmd.Find([]string{name})
		if assert.NoError(err, name) {
			assert.Equal(name, sub.Name())
		}
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	if assert.NotNil(verbose) {
		assert.Equal("v", verbose.Shorthand)
	}
	assert.NotNil(cmd.PersistentFlags().Lookup("config"))
}

func TestClassifyCommand(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		args []string
		out  string
	}){
		{[]string{"classify", "0x0a0003a0"}, "PermitEncryptionViolation\n"},
		{[]string{"classify", "0x0a0003c0"}, "EncKeyTableViolation\n"},
		{[]string{"classify", "0x0a000160"}, "EncCapLenViolation\n"},
		{[]string{"classify", "0x0a007fe0"}, "EncTagViolation\n"},
		{[]string{"classify", "0x0a000040"}, "unrecognized 0x02 (TagViolation)\n"},
		{[]string{"classify", "0x0b0003a0"}, "no-match\n"},
		{[]string{"classify", "0"}, "no-match\n"},
		{[]string{"classify", "10", "0x3e0"}, "EncTagViolation\n"},
		{[]string{"classify", "11", "0x3e0"}, "no-match\n"},
	}

	for _, entry := range table {
		out, err := execute(entry.args...)
		assert.NoError(err, entry.args)
		assert.Equal(entry.out, out, entry.args)
	}

	_, err := execute("classify", "status")
	assert.ErrorIs(err, ErrNumber("status"))
	assert.Equal(EXIT_COMMAND_ERROR, ExitCode(err))

	_, err = execute("classify")
	assert.Error(err)
}

func TestPermsCommand(t *testing.T) {
	assert := assert.New(t)

	out, err := execute("perms", "0x1fff")
	assert.NoError(err)
	assert.Equal("ECYUISlwrWRXG encrypt permitted\n", out)

	out, err = execute("perms", "0x1000")
	assert.NoError(err)
	assert.Equal("E------------ encrypt permitted\n", out)

	out, err = execute("perms", "0x0fff")
	assert.NoError(err)
	assert.Equal("-CYUISlwrWRXG encrypt not permitted\n", out)

	_, err = execute("perms", "0x1_0000_0000")
	assert.Error(err)
}

func TestDefinesCommand(t *testing.T) {
	assert := assert.New(t)

	out, err := execute("defines")
	assert.NoError(err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(lines, "ROOT 31")
	assert.Contains(lines, "PERM_PERMIT_ENCRYPT 12")
	assert.Contains(lines, "CAUSE_EncTag_Violation 0x1f")
	assert.IsNonDecreasing(lines)
}

func TestRunCommand(t *testing.T) {
	assert := assert.New(t)

	out, err := execute("run",
		filepath.Join(scenarios, "seal-root.yaml"),
		filepath.Join(scenarios, "key-revoked.yaml"),
	)
	assert.NoError(err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if assert.Len(lines, 4) {
		id, found := strings.CutPrefix(lines[0], "run ")
		assert.True(found)
		_, perr := uuid.Parse(id)
		assert.NoError(perr)
		assert.Equal("PASS seal-root", lines[1])
		assert.Equal("PASS key-revoked", lines[2])
		assert.Equal("2 passed, 0 failed", lines[3])
	}
}

func TestRunCommand_Failure(t *testing.T) {
	assert := assert.New(t)

	out, err := execute("run", "--trace",
		filepath.Join(scenarios, "unhandled-trap.yaml"),
		filepath.Join(scenarios, "missing.yaml"),
	)
	assert.ErrorIs(err, ErrScenariosFailed)
	assert.Equal(EXIT_FAILURE, ExitCode(err))

	assert.Contains(out, "FAIL unhandled-trap: ")
	assert.Contains(out, "    2: seal_encrypt trap TagViolation\n")
	assert.Contains(out, "FAIL "+filepath.Join(scenarios, "missing.yaml"))
	assert.Contains(out, "0 passed, 2 failed\n")
}

func TestRunCommand_Config(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "plain.yaml")
	assert.NoError(os.WriteFile(path, []byte("perform_encrypt: false\n"), 0o644))

	// Without encryption, the tag check of an untagged encrypted
	// capability is an ordinary tag fault, which the encryption cause
	// assertion accepts.
	out, err := execute("run", "--config", path, "--trace",
		filepath.Join(scenarios, "untagged-encrypted.yaml"),
	)
	assert.NoError(err)
	assert.Contains(out, "PASS untagged-encrypted\n")
	assert.Contains(out, "    scenario untagged-encrypted encrypt false\n")
	assert.Contains(out, "    3: unseal_decrypt trap TagViolation\n")
	assert.Contains(out, "1 passed, 0 failed\n")

	_, err = execute("run", "--config", filepath.Join(t.TempDir(), "missing.yaml"),
		filepath.Join(scenarios, "seal-root.yaml"),
	)
	assert.ErrorIs(err, os.ErrNotExist)
	assert.Equal(EXIT_COMMAND_ERROR, ExitCode(err))
}
