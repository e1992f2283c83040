package main

import (
	"strings"
	"testing"
)

func TestStatusReportsChecks(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	for _, want := range []string{"== Dependencies ==", "FFmpeg:", "FFprobe:", "Output:", "Notifications:", "[OK]"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("status output to a buffer must not be colorized")
	}
}

func TestStatusFailsWithoutEncoder(t *testing.T) {
	env := setupCLIEnv(t)
	env.cfg.Encoder.FFmpegBinary = "convoy-missing-ffmpeg"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, env, "status")
	if err == nil {
		t.Fatal("expected status to fail when ffmpeg is missing")
	}
	requireContains(t, out, "[ERROR]")
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("Output", statusOK, "/srv/out", false)
	if plain != "  Output:            [OK] /srv/out" {
		t.Fatalf("unexpected line %q", plain)
	}
	colored := renderStatusLine("Output", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
}
