package descriptor

// Merge folds fragment onto base and returns the result. Neither input is
// modified.
//
// Lists are concatenated with base elements first. Objects are merged
// recursively. The legacy minecraftArguments string is merged flag by flag
// with the fragment winning. Any other value in fragment replaces base's.
// Keys only present in base are kept as they are.
func Merge(base, fragment Descriptor) Descriptor {
	out := copyMap(base)
	mergeInto(out, fragment)
	return Descriptor(out)
}

// MergeAll folds every fragment onto base in order. For overlapping scalar
// keys the last fragment wins.
func MergeAll(base Descriptor, fragments ...Descriptor) Descriptor {
	out := Merge(base, nil)
	for _, f := range fragments {
		out = Merge(out, f)
	}
	return out
}

// mergeInto merges src into dst, which must be a private copy.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		switch v := value.(type) {
		case []any:
			baseList, _ := dst[key].([]any)
			merged := make([]any, 0, len(baseList)+len(v))
			merged = append(merged, baseList...)
			merged = append(merged, copyValue(v).([]any)...)
			dst[key] = merged
		case map[string]any:
			sub, ok := dst[key].(map[string]any)
			if !ok {
				sub = map[string]any{}
			}
			mergeInto(sub, v)
			dst[key] = sub
		case string:
			if key == KeyMinecraftArguments {
				if baseArgs, ok := dst[key].(string); ok {
					dst[key] = MergeLegacyArguments(baseArgs, v)
					continue
				}
			}
			dst[key] = v
		default:
			dst[key] = copyValue(v)
		}
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case Descriptor:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
