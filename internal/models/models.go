package models

// IntermediateRepresentation is a structure to hold the parsed input
// in a way that's easy for the normalizers to work with.
type IntermediateRepresentation struct {
	Root        Value
	RootIsArray bool // True if the root of the input is an array vs an object
}

// Records returns the rows described by the representation. A root array
// is split into one record per element when perElement is set; every
// other root is a single record.
func (ir IntermediateRepresentation) Records(perElement bool) []Value {
	if perElement && ir.RootIsArray {
		items, _ := ir.Root.AsArray()
		return items
	}
	return []Value{ir.Root}
}
