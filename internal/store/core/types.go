package core

import "time"

// IndexRecord is one row of the institutional complexity dataset.
// Index values range 0-100; Total is the mean of the five components.
// Pointers mark columns that can be NULL for years where a dimension
// had no source data.
type IndexRecord struct {
	CountryName          string   `json:"country_name"`
	CountryCode          string   `json:"country_cod"`
	Year                 int      `json:"year"`
	SocioCultural        *float64 `json:"indice_socio_cultural"`
	MarketsBusiness      *float64 `json:"indice_mercados_negocios"`
	Entrepreneurship     *float64 `json:"indice_empreendedorismo"`
	GovernmentEfficiency *float64 `json:"indice_eficiencia_governo"`
	LegalEnvironment     *float64 `json:"indice_ambiente_juridico"`
	NDimsOK              *int     `json:"n_dims_ok,omitempty"`
	Total                *float64 `json:"indice_total"`
}

// IndexFilter narrows a dataset read. Empty Countries means all countries
// (the dashboard's "leave empty for all" behavior).
type IndexFilter struct {
	Countries []string
	YearFrom  int
	YearTo    int
}

// DownloadRequest is the audit record of a data download request.
type DownloadRequest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Institution string    `json:"institution"`
	Purpose     string    `json:"purpose"`
	Countries   []string  `json:"countries,omitempty"`
	YearFrom    int       `json:"year_from"`
	YearTo      int       `json:"year_to"`
	Format      string    `json:"format"` // csv | xlsx
	RowCount    int       `json:"row_count"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContactMessage is the audit record of a contact form submission.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
