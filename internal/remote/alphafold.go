package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"goflare.io/foldscope/pkg/protein"
)

const predictionMethod = "AlphaFold Prediction"

type alphafoldPrediction struct {
	EntryID           string   `json:"entryId"`
	UniProtAccession  string   `json:"uniprotAccession"`
	ConfidenceScore   *float64 `json:"confidenceScore"`
	GlobalMetricValue *float64 `json:"globalMetricValue"`
	Resolution        float64  `json:"resolution"`
	CifURL            string   `json:"cifUrl"`
}

// predictions accepts both the array the API returns and a single object.
type predictions []alphafoldPrediction

func (p *predictions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single alphafoldPrediction
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*p = predictions{single}
		return nil
	}
	var many []alphafoldPrediction
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*p = many
	return nil
}

// Structure returns the predicted structure for a UniProt accession. A missing
// prediction is reported as an APIError wrapping ErrNotFound.
func (c *Client) Structure(ctx context.Context, uniprotID string) (*protein.StructureData, error) {
	const op = "alphafold.prediction"

	var resp predictions
	endpoint := c.alphafoldURL + "/prediction/" + url.PathEscape(uniprotID)
	if err := c.getJSON(ctx, op, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, &APIError{Op: op, Err: fmt.Errorf("%w: no prediction for %s", ErrNotFound, uniprotID)}
	}

	p := resp[0]
	data := &protein.StructureData{
		PDBID:              uniprotID,
		Resolution:         p.Resolution,
		ExperimentalMethod: predictionMethod,
		Coordinates:        p.CifURL,
		LastUpdated:        c.now().UTC(),
	}
	switch {
	case p.ConfidenceScore != nil:
		data.ConfidenceScore = *p.ConfidenceScore
	case p.GlobalMetricValue != nil:
		data.ConfidenceScore = *p.GlobalMetricValue
	}
	if data.Coordinates == "" {
		data.Coordinates = c.alphafoldURL + "/prediction/download/" + url.PathEscape(uniprotID) + "?format=cif"
	}
	return data, nil
}
