// Package loader gathers and installs mod loaders on top of a vanilla
// version.
//
// Each requested loader is a [Spec]. [New] turns a Spec into an [Installer]
// with two steps:
//
//   - Gather returns the files that must be fetched before Install.
//   - Install transforms the installation and returns a descriptor fragment.
//
// Three variants exist:
//
//   - Processor pipeline (Forge 1.13+, NeoForge): an install profile names
//     libraries and an ordered chain of processors, external Java tools
//     whose arguments use a small template language. Processors run one at
//     a time in declared order; later steps consume earlier outputs.
//   - Legacy Forge: the profile embeds the fragment as versionInfo and no
//     processors exist.
//   - Fabric-like (Fabric, Quilt): a metadata endpoint lists the libraries;
//     the fragment is built from that metadata.
//
// # Template language
//
// Profile data values are resolved per side:
//
//	[group:artifact:version]  absolute path of the library
//	'literal'                 the literal without quotes
//	/data/client.lzma         path inside the unpacked installer
//	anything else             kept as is
//
// Processor arguments substitute {NAME} from those values and replace a
// whole [coordinate] argument with the library path. Anything left
// unresolved is an [UnresolvedProfileError].
package loader
