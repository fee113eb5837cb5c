package descriptor

import "strings"

// LegacyArgs is an insertion-ordered flag to value map parsed from a
// minecraftArguments string. Flags without a value map to "".
type LegacyArgs struct {
	keys   []string
	values map[string]string
}

// ParseLegacyArguments tokenizes s on whitespace. A token followed by a token
// that does not start with "--" forms a pair; otherwise the token is a flag
// with an empty value.
func ParseLegacyArguments(s string) *LegacyArgs {
	a := &LegacyArgs{values: map[string]string{}}
	tokens := strings.Fields(s)
	for i := 0; i < len(tokens); i++ {
		key := tokens[i]
		value := ""
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			value = tokens[i+1]
			i++
		}
		a.Set(key, value)
	}
	return a
}

// Set stores value under key, keeping the key's original position.
func (a *LegacyArgs) Set(key, value string) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value for key.
func (a *LegacyArgs) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Len returns the number of flags.
func (a *LegacyArgs) Len() int { return len(a.keys) }

// Keys returns the flags in order.
func (a *LegacyArgs) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Merge sets every flag of other onto a.
func (a *LegacyArgs) Merge(other *LegacyArgs) {
	for _, k := range other.keys {
		a.Set(k, other.values[k])
	}
}

// String serializes the flags back into a single argument string.
func (a *LegacyArgs) String() string {
	parts := make([]string, 0, len(a.keys)*2)
	for _, k := range a.keys {
		parts = append(parts, k)
		if v := a.values[k]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// MergeLegacyArguments merges two minecraftArguments strings. Flags from
// fragment override base; base flag order is kept and new flags follow.
func MergeLegacyArguments(base, fragment string) string {
	a := ParseLegacyArguments(base)
	a.Merge(ParseLegacyArguments(fragment))
	return a.String()
}
