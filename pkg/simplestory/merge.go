package simplestory

// DeepMerge merges source into target in place. Nested mappings merge
// recursively; arrays and scalars in source overwrite target.
func DeepMerge(target, source Node) Node {
	for key, value := range source {
		if src, ok := value.(Node); ok {
			if existing, ok := target[key].(Node); ok {
				DeepMerge(existing, src)
				continue
			}
		}
		target[key] = value
	}
	return target
}

// DeepCopy returns a copy of a decoded JSON value that shares no mappings
// or slices with the original.
func DeepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case Node:
		out := make(Node, len(v))
		for key, child := range v {
			out[key] = DeepCopy(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			out[i] = DeepCopy(child)
		}
		return out
	default:
		return v
	}
}
