package display

// Palette assigns colours by list position. The mapping follows data order,
// so a reordered payload shifts colours.
type Palette struct {
	Colors      []string
	Placeholder string
}

// Color returns the colour for the item at index, wrapping around the
// palette. An empty palette yields the placeholder.
func (p Palette) Color(index int) string {
	n := len(p.Colors)
	if n == 0 {
		return p.Placeholder
	}
	return p.Colors[((index%n)+n)%n]
}
