package loader

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeZip creates a zip archive at path holding the given entries.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// writeToolJar creates a jar whose manifest names mainClass.
func writeToolJar(t *testing.T, path, mainClass string) {
	t.Helper()
	writeZip(t, path, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\r\nMain-Class: " + mainClass + "\r\n\r\n",
		"Main.class":           "\xca\xfe\xba\xbe",
	})
}

func TestUnpack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "installer.jar")
	writeZip(t, src, map[string]string{
		"install_profile.json": "{}",
		"data/client.lzma":     "patch",
		"maven/a/b/1/b-1.jar":  "jar",
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
	})

	dest := filepath.Join(dir, "out")
	if err := Unpack(src, dest); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "data", "client.lzma"))
	if err != nil || string(got) != "patch" {
		t.Errorf("data/client.lzma = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dest, "maven", "a", "b", "1", "b-1.jar")); err != nil {
		t.Errorf("nested entry missing: %v", err)
	}
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escape.txt": "x"})

	dest := filepath.Join(dir, "out")
	if err := Unpack(src, dest); err == nil {
		t.Fatal("expected error for escaping entry")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("escaping entry was written")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination should be removed on failure")
	}
}

func TestMainClass(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "tool.jar")
	writeToolJar(t, jar, "net.minecraftforge.binarypatcher.ConsoleTool")

	got, err := MainClass(jar)
	if err != nil {
		t.Fatalf("MainClass: %v", err)
	}
	if got != "net.minecraftforge.binarypatcher.ConsoleTool" {
		t.Errorf("MainClass = %q", got)
	}

	bare := filepath.Join(dir, "bare.jar")
	writeZip(t, bare, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n"})
	if _, err := MainClass(bare); !errors.Is(err, ErrNoMainClass) {
		t.Errorf("expected ErrNoMainClass, got %v", err)
	}
}

func TestManifestContinuationLines(t *testing.T) {
	manifest := "Manifest-Version: 1.0\r\nMain-Class: net.minecraftforge.installertools.Consol\r\n eTool\r\nCreated-By: test\r\n"
	got, err := manifestMainClass(strings.NewReader(manifest))
	if err != nil {
		t.Fatal(err)
	}
	if got != "net.minecraftforge.installertools.ConsoleTool" {
		t.Errorf("got %q", got)
	}
}
