// Package mirror maps canonical download URLs to alternate hosts.
//
// A Table is a static, ordered list of prefix rules. Resolve never performs
// I/O; it only produces the ordered candidate list a fetch task walks.
package mirror

import "strings"

// Rule maps one canonical URL prefix to one or more mirror prefixes.
type Rule struct {
	Prefix  string   `yaml:"prefix"`
	Mirrors []string `yaml:"mirrors"`
}

// Table is an ordered set of prefix rules.
type Table struct {
	rules []Rule
}

// NewTable creates a table from rules. Rule order is preserved.
func NewTable(rules []Rule) *Table {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Table{rules: cp}
}

// DefaultRules returns the built-in prefix table pointing at BMCLAPI.
func DefaultRules() []Rule {
	const bmcl = "https://bmclapi2.bangbang93.com/"
	return []Rule{
		{Prefix: "https://piston-meta.mojang.com/", Mirrors: []string{bmcl}},
		{Prefix: "https://piston-data.mojang.com/", Mirrors: []string{bmcl}},
		{Prefix: "https://launchermeta.mojang.com/", Mirrors: []string{bmcl}},
		{Prefix: "https://launcher.mojang.com/", Mirrors: []string{bmcl}},
		{Prefix: "https://libraries.minecraft.net/", Mirrors: []string{bmcl + "maven/"}},
		{Prefix: "https://resources.download.minecraft.net/", Mirrors: []string{bmcl + "assets/"}},
		{Prefix: "https://maven.minecraftforge.net/", Mirrors: []string{bmcl + "maven/"}},
		{Prefix: "https://files.minecraftforge.net/maven/", Mirrors: []string{bmcl + "maven/"}},
		{Prefix: "https://maven.neoforged.net/releases/", Mirrors: []string{bmcl + "maven/"}},
		{Prefix: "https://meta.fabricmc.net/", Mirrors: []string{bmcl + "fabric-meta/"}},
		{Prefix: "https://maven.fabricmc.net/", Mirrors: []string{bmcl + "maven/"}},
		{Prefix: "https://meta.quiltmc.org/", Mirrors: []string{bmcl + "quilt-meta/"}},
		{Prefix: "https://maven.quiltmc.org/repository/release/", Mirrors: []string{bmcl + "maven/"}},
	}
}

// Default returns a table built from DefaultRules.
func Default() *Table {
	return NewTable(DefaultRules())
}

// Resolve returns the ordered candidate URLs for url.
//
// Every rule whose prefix matches contributes its mirrors in rule order.
// With preferMirror false the original URL comes first; with preferMirror
// true it is tried last.
func (t *Table) Resolve(url string, preferMirror bool) []string {
	var mirrors []string
	if t != nil {
		for _, r := range t.rules {
			if !strings.HasPrefix(url, r.Prefix) {
				continue
			}
			rest := url[len(r.Prefix):]
			for _, m := range r.Mirrors {
				mirrors = append(mirrors, m+rest)
			}
		}
	}

	out := make([]string, 0, len(mirrors)+1)
	if !preferMirror {
		out = append(out, url)
	}
	out = append(out, mirrors...)
	if preferMirror {
		out = append(out, url)
	}
	return out
}

// Rules returns a copy of the table's rules.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	cp := make([]Rule, len(t.rules))
	copy(cp, t.rules)
	return cp
}
