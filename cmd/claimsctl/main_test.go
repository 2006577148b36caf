package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T, extra ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	body := strings.Join(extra, "") + "jwt:\n  secret: test\nsecurity:\n  encryption_key: " + strings.Repeat("cd", 32) + "\n  bcrypt_cost: 4\naudit:\n  path: " + filepath.Join(t.TempDir(), "audit.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "verify", "AXA-2024-001", "1000", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "VALID: Policy verified")

	out, err = run(t, "verify", "NHIS-2023-778", "10", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "INVALID: Policy is Expired")

	_, err = run(t, "verify", "AXA-2024-001", "lots", "--config", path)
	assert.Error(t, err)

	for _, amount := range []string{"NaN", "+Inf"} {
		out, err = run(t, "verify", "AXA-2024-001", amount, "--config", path)
		require.Error(t, err, amount)
		assert.NotContains(t, out, "VALID:")
		assert.Contains(t, err.Error(), "greater than zero")
	}
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := run(t, "hash-password", "billing-desk-1", "--config", writeConfig(t))
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("billing-desk-1")))

	_, err = run(t, "hash-password", "short", "--config", writeConfig(t))
	assert.Error(t, err)
}

func TestPostgresOnlyCommands(t *testing.T) {
	path := writeConfig(t)

	for _, name := range []string{"migrate", "seed", "worker"} {
		_, err := run(t, name, "--config", path)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "needs postgres")
	}
}

func TestWatchCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	path := writeConfig(t, "redis:\n  enabled: true\n  url: redis://"+mr.Addr()+"\n")

	var (
		out string
		err error
	)
	done := make(chan struct{})
	go func() {
		out, err = run(t, "watch", "--limit", "1", "--config", path)
		close(done)
	}()

	event := `{"id":"6f1c2b9e-3c1d-4c55-9a7e-2f8d1b0c4e11","type":"CLAIM_DECIDED","payload":{"status":"Approved"},"occurred_at":"2026-06-01T10:00:00Z"}`
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case <-done:
			require.NoError(t, err)
			assert.Equal(t, "2026-06-01T10:00:00Z CLAIM_DECIDED 6f1c2b9e-3c1d-4c55-9a7e-2f8d1b0c4e11 {\"status\":\"Approved\"}\n", out)
			return
		case <-ticker.C:
			// repeat until both subscriptions are live
			mr.Publish("CLAIM_DECIDED", event)
		case <-timeout:
			t.Fatal("watch did not receive the event")
		}
	}
}

func TestWatchCommand_RequiresRedis(t *testing.T) {
	_, err := run(t, "watch", "--config", writeConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.enabled is false")
}
