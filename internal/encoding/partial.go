package encoding

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"convoy/internal/fileutil"
)

// IncompleteDir is the folder under the output root that receives encodes
// which failed verification.
const IncompleteDir = "_incomplete"

const partialMarker = ".partial"

// PartialPath returns the hidden sibling an encode writes to before it is
// verified. The container extension is kept so the encoder picks the same
// muxer: "/out/movies/a.mkv" -> "/out/movies/.a.partial.mkv".
func PartialPath(output string) string {
	dir := filepath.Dir(output)
	base := filepath.Base(output)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+partialMarker+ext)
}

// IsPartial reports whether path looks like a PartialPath result.
func IsPartial(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(strings.TrimSuffix(base, ext), partialMarker)
}

// Finalize promotes a verified partial to its destination, replacing any
// previous file there.
func Finalize(partial, output string) error {
	if err := fileutil.MoveFile(partial, output); err != nil {
		return fmt.Errorf("finalize %s: %w", filepath.Base(output), err)
	}
	return nil
}

// Quarantine disposes of a partial that must not reach its destination. With
// keep set it is moved to <outputRoot>/_incomplete/<name> (suffixed on
// collision) and that path is returned; otherwise it is deleted and "" is
// returned. A missing partial is not an error.
func Quarantine(partial, output, outputRoot string, keep bool) (string, error) {
	if !fileutil.Exists(partial) {
		return "", nil
	}
	if !keep {
		return "", fileutil.RemoveIfExists(partial)
	}
	dir := filepath.Join(outputRoot, IncompleteDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create incomplete dir: %w", err)
	}
	target := fileutil.UniquePath(filepath.Join(dir, filepath.Base(output)))
	if err := fileutil.MoveFile(partial, target); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", filepath.Base(output), err)
	}
	return target, nil
}
