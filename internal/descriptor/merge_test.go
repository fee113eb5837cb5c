package descriptor

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, s string) Descriptor {
	t.Helper()
	d, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestMergeConcatenatesLists(t *testing.T) {
	base := mustParse(t, `{"libraries":[{"name":"a:a:1"},{"name":"b:b:1"}]}`)
	fragment := mustParse(t, `{"libraries":[{"name":"c:c:1"},{"name":"a:a:1"}]}`)

	got := Merge(base, fragment)

	libs := got[KeyLibraries].([]any)
	if len(libs) != 4 {
		t.Fatalf("expected 4 libraries, got %d", len(libs))
	}
	var names []string
	for _, l := range libs {
		names = append(names, l.(map[string]any)["name"].(string))
	}
	want := []string{"a:a:1", "b:b:1", "c:c:1", "a:a:1"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("library order = %v, want %v", names, want)
	}
}

func TestMergeListWithoutBase(t *testing.T) {
	got := Merge(Descriptor{}, mustParse(t, `{"libraries":[{"name":"x:y:1"}]}`))
	if n := len(got[KeyLibraries].([]any)); n != 1 {
		t.Errorf("expected 1 library, got %d", n)
	}
}

func TestMergeRecursesIntoObjects(t *testing.T) {
	base := mustParse(t, `{"arguments":{"game":["--a"],"jvm":["-X1"]},"downloads":{"client":{"url":"u"}}}`)
	fragment := mustParse(t, `{"arguments":{"game":["--b","c"]},"downloads":{"server":{"url":"s"}}}`)

	got := Merge(base, fragment)

	args := got[KeyArguments].(map[string]any)
	if !reflect.DeepEqual(args["game"], []any{"--a", "--b", "c"}) {
		t.Errorf("arguments.game = %v", args["game"])
	}
	if !reflect.DeepEqual(args["jvm"], []any{"-X1"}) {
		t.Errorf("arguments.jvm = %v", args["jvm"])
	}
	downloads := got[KeyDownloads].(map[string]any)
	if _, ok := downloads["client"]; !ok {
		t.Error("base-only downloads.client lost")
	}
	if _, ok := downloads["server"]; !ok {
		t.Error("fragment downloads.server missing")
	}
}

func TestMergeScalarOverridesAndBaseKeysPreserved(t *testing.T) {
	base := mustParse(t, `{"id":"1.20.1","mainClass":"net.minecraft.client.main.Main","type":"release"}`)
	fragment := mustParse(t, `{"id":"1.20.1-forge-47.2.0","mainClass":"cpw.mods.bootstraplauncher.BootstrapLauncher","inheritsFrom":"1.20.1"}`)

	got := Merge(base, fragment)

	if got.ID() != "1.20.1-forge-47.2.0" {
		t.Errorf("id = %q", got.ID())
	}
	if got.MainClass() != "cpw.mods.bootstraplauncher.BootstrapLauncher" {
		t.Errorf("mainClass = %q", got.MainClass())
	}
	if got["type"] != "release" {
		t.Errorf("type = %v", got["type"])
	}
	for k := range fragment {
		if _, ok := got[k]; !ok {
			t.Errorf("fragment key %q missing from result", k)
		}
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := mustParse(t, `{"libraries":[{"name":"a:a:1"}],"arguments":{"game":["--a"]}}`)
	fragment := mustParse(t, `{"libraries":[{"name":"b:b:1"}],"arguments":{"game":["--b"]}}`)

	_ = Merge(base, fragment)

	if n := len(base[KeyLibraries].([]any)); n != 1 {
		t.Errorf("base libraries mutated: %d", n)
	}
	if n := len(base[KeyArguments].(map[string]any)["game"].([]any)); n != 1 {
		t.Errorf("base arguments mutated: %d", n)
	}
	if n := len(fragment[KeyLibraries].([]any)); n != 1 {
		t.Errorf("fragment libraries mutated: %d", n)
	}
}

func TestMergeLegacyArgumentsField(t *testing.T) {
	base := mustParse(t, `{"minecraftArguments":"--username ${auth_player_name} --demo"}`)
	fragment := mustParse(t, `{"minecraftArguments":"--username steve --tweakClass cpw.mods.fml.common.launcher.FMLTweaker"}`)

	got := Merge(base, fragment)

	want := "--username steve --demo --tweakClass cpw.mods.fml.common.launcher.FMLTweaker"
	if got[KeyMinecraftArguments] != want {
		t.Errorf("minecraftArguments = %q, want %q", got[KeyMinecraftArguments], want)
	}
}

func TestMergeAllLastWins(t *testing.T) {
	base := mustParse(t, `{"mainClass":"vanilla","libraries":[1]}`)
	a := mustParse(t, `{"mainClass":"a","libraries":[2]}`)
	b := mustParse(t, `{"mainClass":"b","libraries":[3]}`)

	got := MergeAll(base, a, b)

	if got.MainClass() != "b" {
		t.Errorf("mainClass = %q, want b", got.MainClass())
	}
	if !reflect.DeepEqual(got[KeyLibraries], []any{1.0, 2.0, 3.0}) {
		t.Errorf("libraries = %v", got[KeyLibraries])
	}
}
