package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"convoy/internal/encoding"
)

// excludedDirName reports directories discovery never descends into:
// convoy's own output folders and anything starting with "_".
func excludedDirName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.EqualFold(name, "output")
}

// CanonicalPath returns the absolute, cleaned form of path used as its
// identity.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// Discover walks root recursively and returns supported video files, sorted
// and de-duplicated. Directories listed in skip (typically the output root
// when it sits inside the watch root) are not entered. Hidden files and
// in-progress partial encodes are ignored.
func Discover(root string, formats []string, skip ...string) ([]string, error) {
	root, err := CanonicalPath(root)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, dir := range skip {
		if dir == "" {
			continue
		}
		if canonical, err := CanonicalPath(dir); err == nil && canonical != root {
			skipped[canonical] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Entries that vanish or deny access mid-walk are skipped.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if excludedDirName(d.Name()) {
				return filepath.SkipDir
			}
			if _, ok := skipped[path]; ok {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || encoding.IsPartial(path) {
			return nil
		}
		if !hasFormat(name, formats) {
			return nil
		}
		if _, ok := seen[path]; ok {
			return nil
		}
		seen[path] = struct{}{}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan %s: %w", root, walkErr)
	}
	sort.Strings(files)
	return files, nil
}

// ExpandInputs resolves batch arguments into canonical file paths. Each
// argument may be a file, a directory (scanned like Discover) or a glob
// pattern. Explicitly named files are kept even with an unsupported
// extension so validation can report them. Results keep argument order and
// are de-duplicated.
func ExpandInputs(args []string, formats []string, skip ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, arg := range args {
		matches := []string{arg}
		if strings.ContainsAny(arg, "*?[") {
			globbed, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("expand %q: %w", arg, err)
			}
			matches = globbed
		}
		for _, match := range matches {
			path, err := CanonicalPath(match)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Reported as a per-file failure by the pipeline.
					add(path)
					continue
				}
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			if !info.IsDir() {
				add(path)
				continue
			}
			found, err := Discover(path, formats, skip...)
			if err != nil {
				return nil, err
			}
			for _, file := range found {
				add(file)
			}
		}
	}
	return out, nil
}

func hasFormat(name string, formats []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, format := range formats {
		if format == ext {
			return true
		}
	}
	return false
}
