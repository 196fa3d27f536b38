package permission

import (
	"errors"
	"fmt"
	"sort"
)

// Kind is one of the operations a role may be granted on a module.
type Kind string

const (
	View   Kind = "view"
	Create Kind = "create"
	Edit   Kind = "edit"
	Delete Kind = "delete"
)

// Kinds lists every permission kind in display order.
var Kinds = []Kind{View, Create, Edit, Delete}

// CanonicalModules is the fixed module set the console always renders.
var CanonicalModules = []string{"Invoice", "Leads", "Quotation"}

// EmptySentinel replaces an empty permission_names array on the wire.
const EmptySentinel = ""

var ErrModuleIDMissing = errors.New("module id missing")

// ParseKind returns the kind named by s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Grant is one element of the per-role permissions response.
type Grant struct {
	Module      string   `json:"module"`
	Permissions []string `json:"permissions"`
}

// Record is one element of the per-role permission update payload.
type Record struct {
	ModuleID        string   `json:"module_id"`
	PermissionNames []string `json:"permission_names"`
}

// Matrix maps module name to the granted state of every kind.
type Matrix map[string]map[Kind]bool

// NewMatrix returns a matrix with every (module, kind) cell set to false.
func NewMatrix(modules []string, kinds []Kind) Matrix {
	m := make(Matrix, len(modules))
	for _, name := range modules {
		m.ensure(name, kinds)
	}
	return m
}

// Transform builds a fully populated matrix from a sparse backend response.
func Transform(modules []string, kinds []Kind, grants []Grant) Matrix {
	m := NewMatrix(modules, kinds)
	m.apply(kinds, grants)
	return m
}

// Apply sets every granted kind in grants to true, adding rows for modules
// that are not yet present. Applying the same grants twice is a no-op.
func (m Matrix) Apply(grants []Grant) {
	m.apply(Kinds, grants)
}

func (m Matrix) apply(kinds []Kind, grants []Grant) {
	for _, g := range grants {
		if g.Module == "" {
			continue
		}
		row := m.ensure(g.Module, kinds)
		for _, token := range g.Permissions {
			if token == EmptySentinel {
				continue
			}
			k, ok := ParseKind(token)
			if !ok {
				continue
			}
			row[k] = true
		}
	}
}

func (m Matrix) ensure(module string, kinds []Kind) map[Kind]bool {
	row, ok := m[module]
	if !ok {
		row = make(map[Kind]bool, len(kinds))
		m[module] = row
	}
	for _, k := range kinds {
		if _, ok := row[k]; !ok {
			row[k] = false
		}
	}
	return row
}

// Get reports whether kind is granted on module. Missing cells read as false.
func (m Matrix) Get(module string, kind Kind) bool {
	return m[module][kind]
}

// Set assigns a cell, creating the module row with an all-false baseline if needed.
func (m Matrix) Set(module string, kind Kind, granted bool) {
	row := m.ensure(module, Kinds)
	row[kind] = granted
}

// Has reports whether the matrix carries a row for module.
func (m Matrix) Has(module string) bool {
	_, ok := m[module]
	return ok
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for name, row := range m {
		cp := make(map[Kind]bool, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}

// Equal reports whether both matrices hold the same rows and cells.
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for name, row := range m {
		orow, ok := other[name]
		if !ok || len(row) != len(orow) {
			return false
		}
		for k, v := range row {
			ov, ok := orow[k]
			if !ok || ov != v {
				return false
			}
		}
	}
	return true
}

// Modules returns the row names: canonical modules first, then the rest sorted.
func (m Matrix) Modules() []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(CanonicalModules))
	for _, name := range CanonicalModules {
		if m.Has(name) {
			out = append(out, name)
			seen[name] = true
		}
	}
	extra := make([]string, 0, len(m))
	for name := range m {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Granted lists the kinds currently true for module, in Kinds order.
func (m Matrix) Granted(module string) []string {
	row := m[module]
	out := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		if row[k] {
			out = append(out, string(k))
		}
	}
	return out
}

// Snapshot builds the full per-role update payload: one record per module in
// ids, in module-name order. A module without granted kinds is sent as the
// [""] sentinel. Every matrix row must have an id; a row without one fails
// with ErrModuleIDMissing since the backend replaces the role's whole set.
func Snapshot(m Matrix, ids map[string]string) ([]Record, error) {
	for _, name := range m.Modules() {
		if id, ok := ids[name]; !ok || id == "" {
			return nil, fmt.Errorf("%w: %s", ErrModuleIDMissing, name)
		}
	}

	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]Record, 0, len(names))
	for _, name := range names {
		granted := m.Granted(name)
		if len(granted) == 0 {
			granted = []string{EmptySentinel}
		}
		records = append(records, Record{ModuleID: ids[name], PermissionNames: granted})
	}
	return records, nil
}

// Code is the flat permission code the backend checks, e.g. "Invoice.delete".
func Code(module string, kind Kind) string {
	return module + "." + string(kind)
}
