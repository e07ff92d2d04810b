package models

// DocumentStatusView is a document with its derived workflow figures.
type DocumentStatusView struct {
	Document        Document `json:"document"`
	DaysElapsed     *int     `json:"dias_transcurridos"`
	ProgressPercent int      `json:"progress"`
}

// DocumentDetail adds the signer summary to the status view.
type DocumentDetail struct {
	DocumentStatusView
	Firmantes []FirmanteResumen `json:"firmantes_resumen"`
}
