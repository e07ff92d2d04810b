package models

// Responsibility names seeded in responsabilidad_firma.
const (
	ResponsibilityElabora = "Elabora"
	ResponsibilityRevisa  = "Revisa"
	ResponsibilityAprueba = "Aprueba"
)

// Responsibility is a named rank in the signing order. Orden is nil when the
// rank is undefined, which makes the responsibility unusable for signing.
type Responsibility struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Orden *int   `json:"orden"`
}

// Ranked reports whether the responsibility carries a usable orden.
func (r Responsibility) Ranked() bool {
	return r.Orden != nil
}
