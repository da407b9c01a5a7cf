package remote

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"goflare.io/foldscope/pkg/protein"
)

const (
	searchFields     = "accession,protein_name,organism_name,sequence,length"
	annotationFields = "accession,protein_name,sequence,features"

	unknownProtein     = "Unknown protein"
	unknownFeature     = "Unknown"
	noDescription      = "No description available"
	evidenceUnassigned = "Not specified"
)

type uniprotValue struct {
	Value string `json:"value"`
}

type uniprotName struct {
	FullName  *uniprotValue `json:"fullName"`
	ShortName *uniprotValue `json:"shortName"`
}

type uniprotEntry struct {
	PrimaryAccession string `json:"primaryAccession"`
	ProteinDesc      struct {
		RecommendedName *uniprotName  `json:"recommendedName"`
		SubmittedName   []uniprotName `json:"submittedName"`
	} `json:"proteinDescription"`
	Sequence struct {
		Value  string `json:"value"`
		Length int    `json:"length"`
	} `json:"sequence"`
	Organism struct {
		ScientificName string `json:"scientificName"`
	} `json:"organism"`
	Features []uniprotFeature `json:"features"`
}

type uniprotSearchResponse struct {
	Results []uniprotEntry `json:"results"`
}

type uniprotPosition struct {
	Value *int `json:"value"`
}

type uniprotFeature struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    *struct {
		Start    *uniprotPosition `json:"start"`
		End      *uniprotPosition `json:"end"`
		Position *uniprotPosition `json:"position"`
	} `json:"location"`
	Evidences []struct {
		Code string `json:"evidenceCode"`
	} `json:"evidences"`
}

// SearchProteins runs a UniProtKB search. A non-positive limit uses the configured default.
func (c *Client) SearchProteins(ctx context.Context, query string, limit int) ([]protein.Protein, error) {
	if limit <= 0 {
		limit = c.searchLimit
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("fields", searchFields)
	params.Set("size", strconv.Itoa(limit))

	var resp uniprotSearchResponse
	if err := c.getJSON(ctx, "uniprot.search", c.uniprotURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	proteins := make([]protein.Protein, 0, len(resp.Results))
	for _, entry := range resp.Results {
		proteins = append(proteins, entry.toProtein())
	}
	c.logger.Debug("UniProt search finished", zap.String("query", query), zap.Int("results", len(proteins)))
	return proteins, nil
}

// Annotations returns the sequence features recorded for a UniProt accession.
func (c *Client) Annotations(ctx context.Context, uniprotID string) ([]protein.Annotation, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("fields", annotationFields)

	var entry uniprotEntry
	endpoint := c.uniprotURL + "/" + url.PathEscape(uniprotID) + "?" + params.Encode()
	if err := c.getJSON(ctx, "uniprot.annotations", endpoint, &entry); err != nil {
		return nil, err
	}

	annotations := make([]protein.Annotation, 0, len(entry.Features))
	for _, f := range entry.Features {
		annotations = append(annotations, f.toAnnotation())
	}
	return annotations, nil
}

func (e uniprotEntry) toProtein() protein.Protein {
	p := protein.Protein{
		ID:        e.PrimaryAccession,
		Name:      unknownProtein,
		Sequence:  e.Sequence.Value,
		Length:    e.Sequence.Length,
		Organism:  e.Organism.ScientificName,
		UniProtID: e.PrimaryAccession,
	}

	if rn := e.ProteinDesc.RecommendedName; rn != nil {
		if rn.FullName != nil && rn.FullName.Value != "" {
			p.Name = rn.FullName.Value
		}
		if rn.ShortName != nil {
			p.Description = rn.ShortName.Value
		}
	}
	if p.Name == unknownProtein {
		for _, sn := range e.ProteinDesc.SubmittedName {
			if sn.FullName != nil && sn.FullName.Value != "" {
				p.Name = sn.FullName.Value
				break
			}
		}
	}
	if p.Length == 0 {
		p.Length = len(p.Sequence)
	}
	return p
}

func (f uniprotFeature) toAnnotation() protein.Annotation {
	a := protein.Annotation{
		Type:        f.Type,
		Description: f.Description,
		Evidence:    evidenceUnassigned,
	}
	if a.Type == "" {
		a.Type = unknownFeature
	}
	if a.Description == "" {
		a.Description = f.Type
	}
	if a.Description == "" {
		a.Description = noDescription
	}
	if len(f.Evidences) > 0 && f.Evidences[0].Code != "" {
		a.Evidence = f.Evidences[0].Code
	}

	if loc := f.Location; loc != nil {
		switch {
		case loc.Start != nil && loc.Start.Value != nil && loc.End != nil && loc.End.Value != nil:
			a.Location = protein.Location{Start: *loc.Start.Value, End: *loc.End.Value}
		case loc.Position != nil && loc.Position.Value != nil:
			a.Location = protein.Location{Start: *loc.Position.Value, End: *loc.Position.Value}
		}
	}
	return a
}
