package backup

// ActiveFilter restricts an export to rows matching one equality predicate,
// applied identically to every batch query.
type ActiveFilter struct {
	Column string
	Value  any
}

// TableSpec describes one exportable table: its conflict key for restore
// upserts and an optional active-only export filter. The same export and
// upsert code path serves every table; the registry is what keeps the
// string-driven dispatch honest.
type TableSpec struct {
	Name         string
	ConflictKey  string
	ActiveFilter *ActiveFilter
}

// Registry is the ordered set of known tables. Full backups expand to the
// registry order; module backups pick from it by name.
type Registry struct {
	specs []TableSpec
	byName map[string]TableSpec
}

func NewRegistry(specs []TableSpec) *Registry {
	r := &Registry{specs: specs, byName: make(map[string]TableSpec, len(specs))}
	for _, s := range specs {
		r.byName[s.Name] = s
	}
	return r
}

// DefaultRegistry lists every application table in backup order. Parents
// precede children so a restore into an empty catalog satisfies foreign keys.
func DefaultRegistry() *Registry {
	return NewRegistry([]TableSpec{
		{Name: "users", ConflictKey: "id"},
		{Name: "asset_categories", ConflictKey: "id"},
		{Name: "asset_tag_formats", ConflictKey: "id"},
		{Name: "assets", ConflictKey: "id"},
		{Name: "helpdesk_tickets", ConflictKey: "id", ActiveFilter: &ActiveFilter{Column: "is_deleted", Value: 0}},
		{Name: "subscriptions", ConflictKey: "id"},
		{Name: "device_updates", ConflictKey: "id"},
	})
}

// Names returns the table names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Specs returns the specs in registry order.
func (r *Registry) Specs() []TableSpec {
	return r.specs
}

// Lookup returns the spec for a table name. Unknown tables (snapshots from a
// newer schema) get a bare spec with conflict key "id" so restores can still
// attempt them.
func (r *Registry) Lookup(name string) TableSpec {
	if s, ok := r.byName[name]; ok {
		return s
	}
	return TableSpec{Name: name, ConflictKey: "id"}
}

// Resolve maps a caller-supplied table list onto specs, preserving caller
// order. Names unknown to the registry pass through with default specs.
func (r *Registry) Resolve(names []string) []TableSpec {
	specs := make([]TableSpec, len(names))
	for i, n := range names {
		specs[i] = r.Lookup(n)
	}
	return specs
}
