package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.OutputDir)
}

func TestSampleConfigLoads(t *testing.T) {
	env := setupCLIEnv(t)
	target := filepath.Join(t.TempDir(), "sample.toml")
	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	env.configPath = target
	if _, _, err := runCLI(t, env, "config", "validate"); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestEnvFileFeedsConfig(t *testing.T) {
	env := setupCLIEnv(t)
	watch := filepath.Join(t.TempDir(), "from-env")
	envFile := filepath.Join(t.TempDir(), "convoy.env")
	if err := os.WriteFile(envFile, []byte("CONVOY_WATCH_DIR="+watch+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("CONVOY_WATCH_DIR") })

	out, _, err := runCLI(t, env, "--env-file", envFile, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, watch)
}

func TestLogFlagsValidated(t *testing.T) {
	env := setupCLIEnv(t)
	if _, _, err := runCLI(t, env, "--log-format", "xml", "config", "validate"); err == nil {
		t.Fatal("expected unsupported log format to be rejected")
	}
	out, _, err := runCLI(t, env, "--log-level", "DEBUG", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "debug")
}

func TestMissingEnvFileFails(t *testing.T) {
	env := setupCLIEnv(t)
	if _, _, err := runCLI(t, env, "--env-file", filepath.Join(t.TempDir(), "nope.env"), "config", "validate"); err == nil {
		t.Fatal("expected error for missing env file")
	}
}
