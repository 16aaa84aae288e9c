package domain

// EntityRegistry is the accumulated name-to-description mapping built up
// across generation phases. Keys are unique; merge priority is decided by
// the caller (phase ordering), never by insertion time.
type EntityRegistry map[string]string

// NewEntityRegistry returns an empty registry.
func NewEntityRegistry() EntityRegistry {
	return make(EntityRegistry)
}

// Clone returns an independent copy of the registry.
func (r EntityRegistry) Clone() EntityRegistry {
	out := make(EntityRegistry, len(r))
	for name, desc := range r {
		out[name] = desc
	}
	return out
}

// Merge copies every entry from overlay into r, overwriting existing keys.
// Callers control priority by merge order: entries merged later win.
func (r EntityRegistry) Merge(overlay EntityRegistry) {
	for name, desc := range overlay {
		r[name] = desc
	}
}

// MergeRegistries combines base and overlay into a new registry where any
// key present in overlay wins over the base value for the same key. Both
// inputs are left unmodified.
func MergeRegistries(base, overlay EntityRegistry) EntityRegistry {
	out := base.Clone()
	out.Merge(overlay)
	return out
}
