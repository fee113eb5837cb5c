package loader

import (
	"strings"

	"github.com/kiyonya/miocore/internal/maven"
	"github.com/kiyonya/miocore/internal/vanilla"
)

// MojmapsSentinel marks the processor that Forge-style installers would
// run to download the official mappings. It is replaced by a fetch item.
const MojmapsSentinel = "DOWNLOAD_MOJMAPS"

// Family configures the processor pipeline for a Forge-style loader.
type Family struct {
	Name string
	Repo string

	// Installer returns the installer coordinate for a game and loader
	// version.
	Installer func(game, version string) maven.Coordinate

	Sentinel string

	// LegacyBefore is the first game version with a modern profile. Empty
	// means the family never ships legacy profiles.
	LegacyBefore string
}

// ExpectLegacy reports whether game predates the modern profile format.
func (f Family) ExpectLegacy(game string) bool {
	return f.LegacyBefore != "" && vanilla.Before(game, f.LegacyBefore)
}

// Forge is the Minecraft Forge family.
var Forge = Family{
	Name:         "forge",
	Repo:         "https://maven.minecraftforge.net/",
	Installer:    forgeInstaller,
	Sentinel:     MojmapsSentinel,
	LegacyBefore: "1.13",
}

// NeoForge is the NeoForge family.
var NeoForge = Family{
	Name:      "neoforge",
	Repo:      "https://maven.neoforged.net/releases/",
	Installer: neoForgeInstaller,
	Sentinel:  MojmapsSentinel,
}

func forgeInstaller(game, version string) maven.Coordinate {
	full := version
	if !strings.HasPrefix(version, game+"-") {
		full = game + "-" + version
	}
	return maven.Coordinate{Group: "net.minecraftforge", Artifact: "forge", Version: full, Classifier: "installer", Ext: "jar"}
}

// neoForgeInstaller handles the 1.20.1 releases, which kept Forge's
// artifact name and version scheme.
func neoForgeInstaller(game, version string) maven.Coordinate {
	if c, ok := vanilla.Compare(game, "1.20.1"); ok && c == 0 {
		full := version
		if !strings.HasPrefix(version, game+"-") {
			full = game + "-" + version
		}
		return maven.Coordinate{Group: "net.neoforged", Artifact: "forge", Version: full, Classifier: "installer", Ext: "jar"}
	}
	return maven.Coordinate{Group: "net.neoforged", Artifact: "neoforge", Version: version, Classifier: "installer", Ext: "jar"}
}
