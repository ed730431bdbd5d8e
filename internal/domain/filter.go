package domain

// Filter selects documents by exact field match. Keys are the JSON field
// names of the entity document. A nil or empty Filter matches everything.
type Filter map[string]any

// Patch is a partial document update. Keys are JSON field names; values
// replace the corresponding fields of the matched document. Fields absent
// from the patch are left untouched.
type Patch map[string]any

// ByID is shorthand for the most common filter, matching a single document
// by its identifier.
func ByID(id string) Filter {
	return Filter{"id": id}
}
