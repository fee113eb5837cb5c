package loader

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoMainClass is returned when a jar manifest has no Main-Class.
var ErrNoMainClass = errors.New("loader: jar manifest has no Main-Class")

// Unpack extracts the zip archive at src into dest. Entries that would
// escape dest are rejected. On failure dest is removed.
func Unpack(src, dest string) (err error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	defer func() {
		if err != nil {
			os.RemoveAll(dest)
		}
	}()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// MainClass reads the Main-Class attribute from a jar's manifest.
func MainClass(jar string) (string, error) {
	r, err := zip.OpenReader(jar)
	if err != nil {
		return "", fmt.Errorf("open jar: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !strings.EqualFold(f.Name, "META-INF/MANIFEST.MF") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return manifestMainClass(rc)
	}
	return "", fmt.Errorf("%w: %s", ErrNoMainClass, jar)
}

// manifestMainClass scans a manifest, joining continuation lines.
func manifestMainClass(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	var key, value string
	flush := func() (string, bool) {
		if strings.EqualFold(key, "Main-Class") {
			return strings.TrimSpace(value), true
		}
		return "", false
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, " ") {
			value += line[1:]
			continue
		}
		if mc, ok := flush(); ok && mc != "" {
			return mc, nil
		}
		k, v, _ := strings.Cut(line, ":")
		key, value = k, strings.TrimPrefix(v, " ")
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if mc, ok := flush(); ok && mc != "" {
		return mc, nil
	}
	return "", ErrNoMainClass
}
