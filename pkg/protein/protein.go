// Package protein holds the normalized payloads fetched from UniProt and AlphaFold.
package protein

import "time"

// Protein is a UniProt search hit.
type Protein struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Sequence    string `json:"sequence"`
	Length      int    `json:"length"`
	Organism    string `json:"organism"`
	UniProtID   string `json:"uniprotId"`
}

// StructureData describes a predicted structure for one protein.
type StructureData struct {
	PDBID              string    `json:"pdbId"`
	Resolution         float64   `json:"resolution"`
	ExperimentalMethod string    `json:"experimentalMethod"`
	ConfidenceScore    float64   `json:"confidenceScore"`
	Coordinates        string    `json:"coordinates"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// Location is an inclusive residue range.
type Location struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Annotation is a sequence feature such as a domain or binding site.
type Annotation struct {
	Type        string   `json:"type"`
	Location    Location `json:"location"`
	Description string   `json:"description"`
	Evidence    string   `json:"evidence"`
}

// BlastStatus is the state of a submitted BLAST search.
type BlastStatus string

const (
	BlastWaiting BlastStatus = "WAITING"
	BlastReady   BlastStatus = "READY"
	BlastFailed  BlastStatus = "FAILED"
)

// BlastHit is one database sequence similar to the query.
type BlastHit struct {
	Accession   string  `json:"accession"`
	Title       string  `json:"title"`
	Organism    string  `json:"organism"`
	Length      int     `json:"length"`
	BitScore    float64 `json:"bitScore"`
	EValue      float64 `json:"evalue"`
	Identity    int     `json:"identity"`
	AlignLength int     `json:"alignLength"`
}

// BlastResult is the outcome of polling a BLAST search. Hits is empty until Status is BlastReady.
type BlastResult struct {
	RID    string      `json:"rid"`
	Status BlastStatus `json:"status"`
	Hits   []BlastHit  `json:"hits,omitempty"`
}

// StructureFormat is a coordinate file format served by AlphaFold.
type StructureFormat string

const (
	FormatPDB StructureFormat = "pdb"
	FormatCIF StructureFormat = "cif"
)

// Valid reports whether f is a downloadable format.
func (f StructureFormat) Valid() bool {
	return f == FormatPDB || f == FormatCIF
}
