package loader

import (
	"reflect"
	"sort"
)

// Merge layers sources left to right into a new map. Later sources win.
func Merge(sources ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, src := range sources {
		DeepMerge(out, src)
	}
	return out
}

// DeepMerge recursively merges src into dst.
// Maps are merged recursively; other values are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}

	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = cloneValue(srcVal)
	}

	return dst
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return val
	}
}

// Flatten turns a nested map into dot-separated keys.
func Flatten(data map[string]any) map[string]any {
	result := make(map[string]any)
	flatten(data, "", result)
	return result
}

func flatten(data map[string]any, prefix string, result map[string]any) {
	for key, val := range data {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flatten(nested, full, result)
			continue
		}
		result[full] = val
	}
}

// ChangedPaths returns the sorted dot paths whose values differ between
// old and new, including keys present on only one side.
func ChangedPaths(old, new map[string]any) []string {
	a, b := Flatten(old), Flatten(new)

	var changed []string
	for path, nv := range b {
		if ov, ok := a[path]; !ok || !reflect.DeepEqual(ov, nv) {
			changed = append(changed, path)
		}
	}
	for path := range a {
		if _, ok := b[path]; !ok {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}
