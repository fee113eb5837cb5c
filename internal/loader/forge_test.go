package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	"github.com/kiyonya/miocore/internal/java"
	"github.com/kiyonya/miocore/internal/maven"
	"github.com/kiyonya/miocore/internal/mirror"
	"github.com/kiyonya/miocore/internal/vanilla"
)

const forgeVanilla = `{
  "id": "1.20.1",
  "mainClass": "net.minecraft.client.main.Main",
  "javaVersion": {"component": "java-runtime-gamma", "majorVersion": 17},
  "downloads": {
    "client": {"sha1": "0c3ec587af28e5a785c0b4a7b8a30f9a8f78f838", "size": 23028225, "url": "https://piston-data.mojang.com/v1/objects/0c3e/client.jar"},
    "client_mappings": {"sha1": "6c48521eed01fe2e8ecdadbd5ae348415f3c47da", "size": 9422442, "url": "https://piston-data.mojang.com/v1/objects/6c48/client.txt"}
  },
  "libraries": [
    {
      "name": "com.mojang:logging:1.1.1",
      "downloads": {"artifact": {"path": "com/mojang/logging/1.1.1/logging-1.1.1.jar", "sha1": "832b8e6674a9b325a5175a3a6267dfaf34c85139", "size": 15343, "url": "https://libraries.minecraft.net/com/mojang/logging/1.1.1/logging-1.1.1.jar"}}
    },
    {"name": "net.minecraft:launchwrapper:1.12"}
  ]
}`

const forgeProfile = `{
  "spec": 1,
  "profile": "forge",
  "version": "1.20.1-forge-47.1.0",
  "minecraft": "1.20.1",
  "json": "/version.json",
  "data": {
    "MOJMAPS": {"client": "[net.minecraft:client:1.20.1-20230612.114412:mappings@txt]", "server": "[net.minecraft:server:1.20.1-20230612.114412:mappings@txt]"},
    "BINPATCH": {"client": "/data/client.lzma", "server": "/data/server.lzma"}
  },
  "processors": [
    {
      "sides": ["client"],
      "jar": "net.minecraftforge:installertools:1.3.0",
      "classpath": [],
      "args": ["--task", "DOWNLOAD_MOJMAPS", "--version", "{MINECRAFT_VERSION}", "--side", "{SIDE}", "--output", "{MOJMAPS}"]
    },
    {
      "jar": "net.minecraftforge:binarypatcher:1.1.1",
      "classpath": ["net.sf.jopt-simple:jopt-simple:5.0.4"],
      "args": ["--side", "{SIDE}", "--clean", "[net.minecraft:client:1.20.1]", "--patch", "{BINPATCH}"]
    }
  ],
  "libraries": []
}`

const forgeFragment = `{
  "id": "1.20.1-forge-47.1.0",
  "inheritsFrom": "1.20.1",
  "mainClass": "cpw.mods.bootstraplauncher.BootstrapLauncher",
  "libraries": [
    {"name": "net.minecraft:launchwrapper:1.12"}
  ],
  "arguments": {"game": ["--launchTarget", "forgeclient"], "jvm": []}
}`

type forgeFixture struct {
	root      string
	layout    vanilla.Layout
	vanilla   descriptor.Descriptor
	runner    *fakeRunner
	fetched   []downloader.Item
	bodies    [][]byte
	hits      int
	installer *processorInstaller
}

func newForgeFixture(t *testing.T, profile string) *forgeFixture {
	t.Helper()
	root := t.TempDir()
	layout := vanilla.NewLayout(filepath.Join(root, "mc"), "")
	v, err := descriptor.Parse([]byte(forgeVanilla))
	if err != nil {
		t.Fatal(err)
	}

	installerJar := filepath.Join(root, "src", "installer.jar")
	writeZip(t, installerJar, map[string]string{
		"install_profile.json": profile,
		"version.json":         forgeFragment,
		"data/client.lzma":     "binpatch",
	})

	for coord, mainClass := range map[string]string{
		"net.minecraftforge:binarypatcher:1.1.1": "net.minecraftforge.binarypatcher.ConsoleTool",
		"net.sf.jopt-simple:jopt-simple:5.0.4":   "joptsimple.Main",
	} {
		path, _ := maven.LocalPath(layout.Libraries, coord)
		writeToolJar(t, path, mainClass)
	}

	f := &forgeFixture{root: root, layout: layout, vanilla: v, runner: &fakeRunner{}}
	data, err := os.ReadFile(installerJar)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := FetchFunc(func(ctx context.Context, phase string, items []downloader.Item) error {
		for _, it := range items {
			f.fetched = append(f.fetched, it)
			// An existing file without a hash is kept, as the downloader does.
			if _, err := os.Stat(it.Dest); err == nil && it.Hash == "" {
				continue
			}
			body := data
			if len(f.bodies) > 0 {
				body, f.bodies = f.bodies[0], f.bodies[1:]
			}
			f.hits++
			if err := os.MkdirAll(filepath.Dir(it.Dest), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(it.Dest, body, 0o644); err != nil {
				return err
			}
		}
		return nil
	})

	env := Env{
		Vanilla: &vanilla.Gatherer{
			Layout:  layout,
			Rules:   descriptor.Platform{OS: "linux", Arch: "x64"},
			Mirrors: mirror.NewTable(nil),
		},
		Fetcher: fetcher,
		Java:    java.Static("/opt/java17/bin/java"),
		Runner:  f.runner,
		WorkDir: filepath.Join(root, "work"),
	}
	inst, err := New(Spec{Kind: KindForge, Version: "47.1.0"}, Request{Side: "client", Vanilla: v}, env)
	if err != nil {
		t.Fatal(err)
	}
	f.installer = inst.(*processorInstaller)
	return f
}

func TestModernForgeEndToEnd(t *testing.T) {
	f := newForgeFixture(t, forgeProfile)
	ctx := context.Background()

	base := f.installer.env.Vanilla.LibraryItems(mustLibraries(t, f.vanilla), vanilla.LibrariesURL)
	if len(base) != 2 {
		t.Fatalf("vanilla library items = %d, want 2", len(base))
	}
	loaderItems, err := f.installer.Gather(ctx)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	batch := downloader.NewBatch(downloader.Options{})
	batch.Add(base...)
	batch.Add(loaderItems...)
	if batch.Len() != len(base)+1 {
		t.Fatalf("combined items = %d, want %d", batch.Len(), len(base)+1)
	}

	var mojmaps downloader.Item
	for _, it := range loaderItems {
		if strings.HasSuffix(it.Dest, "client-1.20.1-20230612.114412-mappings.txt") {
			mojmaps = it
		}
	}
	if mojmaps.Hash != "6c48521eed01fe2e8ecdadbd5ae348415f3c47da" || mojmaps.URLs[0] != "https://piston-data.mojang.com/v1/objects/6c48/client.txt" {
		t.Errorf("mojmaps item = %+v", mojmaps)
	}

	if len(f.fetched) != 1 || !strings.HasSuffix(f.fetched[0].URLs[0], "net/minecraftforge/forge/1.20.1-47.1.0/forge-1.20.1-47.1.0-installer.jar") {
		t.Errorf("installer fetch = %+v", f.fetched)
	}

	fragment, err := f.installer.Install(ctx)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	calls := f.runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("processes spawned = %d, want 1", len(calls))
	}
	inv := calls[0]
	for _, arg := range inv.Args {
		if strings.ContainsAny(arg, "{[") {
			t.Errorf("unresolved argument %q in %v", arg, inv.Args)
		}
	}
	if inv.MainClass != "net.minecraftforge.binarypatcher.ConsoleTool" {
		t.Errorf("MainClass = %q", inv.MainClass)
	}
	if inv.Java != "/opt/java17/bin/java" {
		t.Errorf("Java = %q", inv.Java)
	}
	if len(inv.Classpath) != 2 {
		t.Errorf("Classpath = %v", inv.Classpath)
	}
	if inv.Args[1] != "client" || !strings.HasSuffix(filepath.ToSlash(inv.Args[5]), "data/client.lzma") {
		t.Errorf("Args = %v", inv.Args)
	}

	libs, err := fragment.Libraries()
	if err != nil || len(libs) == 0 {
		t.Errorf("fragment libraries = %v, %v", libs, err)
	}
	if fragment.MainClass() != "cpw.mods.bootstraplauncher.BootstrapLauncher" {
		t.Errorf("fragment mainClass = %q", fragment.MainClass())
	}

	entries, _ := os.ReadDir(filepath.Join(f.root, "work"))
	if len(entries) != 0 {
		t.Errorf("working directory not removed: %v", entries)
	}
}

func TestModernForgeServerSkipsClientProcessors(t *testing.T) {
	f := newForgeFixture(t, forgeProfile)
	f.installer.req.Side = "server"

	items, err := f.installer.Gather(context.Background())
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, it := range items {
		if strings.Contains(it.Dest, "mappings") {
			t.Errorf("server gather should not emit mappings from a client-only sentinel: %s", it.Dest)
		}
	}
}

func TestModernForgeEmbeddedLibraries(t *testing.T) {
	profile := strings.Replace(forgeProfile, `"libraries": []`, `"libraries": [
    {"name": "net.minecraftforge:forge:1.20.1-47.1.0:universal", "downloads": {"artifact": {"path": "net/minecraftforge/forge/1.20.1-47.1.0/forge-1.20.1-47.1.0-universal.jar", "sha1": "", "url": ""}}},
    {"name": "net.minecraftforge:installertools:1.3.0", "downloads": {"artifact": {"path": "net/minecraftforge/installertools/1.3.0/installertools-1.3.0.jar", "sha1": "f0a5b4b1d3d6d1e8b6b0b9ffe0a0b4b7c2e3d4f5", "url": "https://maven.minecraftforge.net/net/minecraftforge/installertools/1.3.0/installertools-1.3.0.jar"}}}
  ]`, 1)
	f := newForgeFixture(t, profile)

	items, err := f.installer.Gather(context.Background())
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]downloader.Item)
	for _, it := range items {
		byName[filepath.Base(it.Dest)] = it
	}

	universal, ok := byName["forge-1.20.1-47.1.0-universal.jar"]
	if !ok {
		t.Fatalf("missing universal item in %v", items)
	}
	if len(universal.URLs) != 1 || !strings.HasPrefix(universal.URLs[0], "file:///") ||
		!strings.HasSuffix(universal.URLs[0], "/maven/net/minecraftforge/forge/1.20.1-47.1.0/forge-1.20.1-47.1.0-universal.jar") {
		t.Errorf("universal URLs = %v", universal.URLs)
	}
	tools := byName["installertools-1.3.0.jar"]
	if len(tools.URLs) == 0 || !strings.HasPrefix(tools.URLs[0], "https://maven.minecraftforge.net/") {
		t.Errorf("installertools URLs = %v", tools.URLs)
	}
	f.installer.Close()
}

func TestModernForgeUnresolvedToken(t *testing.T) {
	profile := strings.Replace(forgeProfile, `"--patch", "{BINPATCH}"`, `"--patch", "{MISSING}"`, 1)
	f := newForgeFixture(t, profile)
	ctx := context.Background()
	if _, err := f.installer.Gather(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := f.installer.Install(ctx)
	var unresolved *UnresolvedProfileError
	if !errors.As(err, &unresolved) || unresolved.Field != "{MISSING}" {
		t.Fatalf("expected UnresolvedProfileError for {MISSING}, got %v", err)
	}
	if len(f.runner.Calls()) != 0 {
		t.Error("no process should be spawned")
	}
}

func mustLibraries(t *testing.T, d descriptor.Descriptor) []descriptor.Library {
	t.Helper()
	libs, err := d.Libraries()
	if err != nil {
		t.Fatal(err)
	}
	return libs
}

func TestUnreadableInstallerIsDiscarded(t *testing.T) {
	f := newForgeFixture(t, forgeProfile)
	f.bodies = [][]byte{[]byte("<html><body>502 Bad Gateway</body></html>")}
	ctx := context.Background()

	if _, err := f.installer.Gather(ctx); err == nil {
		t.Fatal("expected unpack error for a non-zip installer")
	}
	jar := f.fetched[0].Dest
	if _, err := os.Stat(jar); !os.IsNotExist(err) {
		t.Fatalf("unreadable installer left at %s (stat err %v)", jar, err)
	}
	if entries, err := os.ReadDir(f.installer.env.WorkDir); err == nil && len(entries) != 0 {
		t.Errorf("work dir not cleaned: %d entries", len(entries))
	}

	retry, err := New(f.installer.spec, f.installer.req, f.installer.env)
	if err != nil {
		t.Fatal(err)
	}
	defer retry.Close()
	items, err := retry.Gather(ctx)
	if err != nil {
		t.Fatalf("retried Gather: %v", err)
	}
	if len(items) == 0 {
		t.Error("retried Gather returned no items")
	}
	if f.hits != 2 {
		t.Errorf("installer downloads = %d, want 2", f.hits)
	}
}

func TestInstallerWithoutProfileIsDiscarded(t *testing.T) {
	f := newForgeFixture(t, forgeProfile)
	empty := filepath.Join(f.root, "src", "empty.jar")
	writeZip(t, empty, map[string]string{"README.txt": "nothing here"})
	data, err := os.ReadFile(empty)
	if err != nil {
		t.Fatal(err)
	}
	f.bodies = [][]byte{data}

	if _, err := f.installer.Gather(context.Background()); err == nil {
		t.Fatal("expected error for an installer without a profile")
	}
	if _, err := os.Stat(f.fetched[0].Dest); !os.IsNotExist(err) {
		t.Errorf("installer without profile left on disk (stat err %v)", err)
	}
}
