package models

// Citation is a raw coded citation extracted from model output, e.g.
// ("CCCH", "1545") from "CCCH.Art1545".
type Citation struct {
	Key     string // uppercased norm shorthand
	Article string // lowercased article id
}

// Raw renders the citation back in canonical code+article form.
func (c Citation) Raw() string {
	return c.Key + ".Art" + c.Article
}

// ResolvedCitation is a row from the normative citation store.
// Field names mirror the store's column vocabulary.
type ResolvedCitation struct {
	Clave           string // code shorthand, e.g. "CCCH", "DL824.1974"
	Norma           string // norm full name
	NormaTipo       string
	NormaOrganismo  string
	NombreParte     string // article label, e.g. "Artículo 1545"
	NumeroArticulo  string
	URL             string
	Texto           string // literal article text
	Clasificacion   string // validity classification
	FechaVersion    string
	RutaCompleta    string
	Materias        string
	BloqueJuridico  string
	NormaIDNorma    string
	MetadatosParte  string
}

// AnnexResult is the output of the normative citation resolver for one turn.
type AnnexResult struct {
	HasResults bool
	// ModelView is the verbose plain-text block for verification prompts.
	ModelView string
	// UserView is the compact per-citation view for client rendering.
	UserView []AnnexEntry
	// Unresolved carries citations that matched the grammar but not the store.
	Unresolved []Citation
}
