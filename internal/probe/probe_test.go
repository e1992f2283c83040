package probe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"convoy/internal/media/ffprobe"
	"convoy/internal/probe"
)

func TestFromResult(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "audio", CodecName: "AAC"},
			{CodecType: "video", CodecName: "H264", Width: 1280, Height: 720},
		},
		Format: ffprobe.Format{Duration: "60.0", Size: "2048", FormatName: "mov,mp4"},
	}
	meta := probe.FromResult(result)
	if !meta.HasVideo || !meta.HasAudio {
		t.Fatalf("expected video and audio, got %+v", meta)
	}
	if meta.VideoCodec != "h264" || meta.AudioCodec != "aac" {
		t.Fatalf("unexpected codecs: %+v", meta)
	}
	if meta.Quality != "720p" || meta.DurationSeconds != 60 || meta.SizeBytes != 2048 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.IsHEVC() || meta.IsLowQuality() {
		t.Fatalf("unexpected classification: %+v", meta)
	}
}

func TestQualityLabel(t *testing.T) {
	tests := map[int]string{0: "unknown", 360: "SD", 480: "480p", 719: "480p", 720: "720p", 1080: "1080p", 1600: "1440p", 2160: "2160p"}
	for height, want := range tests {
		if got := probe.QualityLabel(height); got != want {
			t.Fatalf("QualityLabel(%d) = %q, want %q", height, got, want)
		}
	}
}

func TestClassification(t *testing.T) {
	if !(probe.MediaMetadata{VideoCodec: "hevc"}).IsHEVC() {
		t.Fatal("expected hevc detection")
	}
	if !(probe.MediaMetadata{HasVideo: true, Height: 480}).IsLowQuality() {
		t.Fatal("expected 480p to be low quality")
	}
	if (probe.MediaMetadata{HasVideo: true}).IsLowQuality() {
		t.Fatal("unknown height must not be flagged")
	}
}

func TestCheckFormat(t *testing.T) {
	formats := []string{".mkv", ".mp4"}
	if err := probe.CheckFormat("/in/a.MKV", formats); err != nil {
		t.Fatalf("expected mkv accepted, got %v", err)
	}
	if err := probe.CheckFormat("/in/a.txt", formats); !errors.Is(err, probe.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if err := probe.CheckFormat("/in/noext", formats); !errors.Is(err, probe.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for missing extension, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := probe.Validate(probe.MediaMetadata{HasAudio: true}); !errors.Is(err, probe.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
	if err := probe.Validate(probe.MediaMetadata{HasVideo: true}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestFFprobeMissingFile(t *testing.T) {
	p := probe.NewFFprobe("ffprobe")
	_, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "gone.mkv"))
	if !errors.Is(err, probe.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFFprobeFailureIsErrProbe(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.mkv")
	if err := os.WriteFile(input, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := probe.NewFFprobe(stub).Probe(context.Background(), input)
	if !errors.Is(err, probe.ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
}

func TestFFprobeFillsSizeFromStat(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ok.mkv")
	if err := os.WriteFile(input, make([]byte, 321), 0o644); err != nil {
		t.Fatal(err)
	}
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"video\",\"codec_name\":\"hevc\",\"height\":1080}],\"format\":{\"duration\":\"5.0\"}}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	meta, err := probe.NewFFprobe(stub).Probe(context.Background(), input)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if meta.SizeBytes != 321 || !meta.IsHEVC() || meta.DurationSeconds != 5 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}
