package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"goflare.io/foldscope/pkg/protein"
)

// maxBlastBody bounds a BLAST report read into memory.
const maxBlastBody = 32 << 20

var (
	ridPattern    = regexp.MustCompile(`RID = (\S+)`)
	statusPattern = regexp.MustCompile(`Status=(\w+)`)
)

type blastOutput struct {
	BlastOutput2 []struct {
		Report struct {
			Results struct {
				Search struct {
					Hits []blastHit `json:"hits"`
				} `json:"search"`
			} `json:"results"`
		} `json:"report"`
	} `json:"BlastOutput2"`
}

type blastHit struct {
	Description []struct {
		Accession string `json:"accession"`
		Title     string `json:"title"`
		SciName   string `json:"sciname"`
	} `json:"description"`
	Len  int `json:"len"`
	HSPs []struct {
		BitScore float64 `json:"bit_score"`
		EValue   float64 `json:"evalue"`
		Identity int     `json:"identity"`
		AlignLen int     `json:"align_len"`
	} `json:"hsps"`
}

func (o *blastOutput) hits() []protein.BlastHit {
	var hits []protein.BlastHit
	for _, report := range o.BlastOutput2 {
		for _, h := range report.Report.Results.Search.Hits {
			if len(h.Description) == 0 {
				continue
			}
			d := h.Description[0]
			hit := protein.BlastHit{
				Accession: d.Accession,
				Title:     d.Title,
				Organism:  d.SciName,
				Length:    h.Len,
			}
			// hsps are ordered best first
			if len(h.HSPs) > 0 {
				hsp := h.HSPs[0]
				hit.BitScore = hsp.BitScore
				hit.EValue = hsp.EValue
				hit.Identity = hsp.Identity
				hit.AlignLength = hsp.AlignLen
			}
			hits = append(hits, hit)
		}
	}
	return hits
}

// SubmitBlast queues a similarity search for sequence and returns its request id (RID).
func (c *Client) SubmitBlast(ctx context.Context, sequence string) (string, error) {
	const op = "blast.submit"

	form := url.Values{
		"CMD":      {"Put"},
		"PROGRAM":  {c.blastProgram},
		"DATABASE": {c.blastDB},
		"QUERY":    {sequence},
	}
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.blastURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	var rid string
	err := c.call(ctx, op, c.blastURL, build, func(resp *http.Response) error {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlastBody))
		if err != nil {
			return &APIError{Op: op, Err: err}
		}
		m := ridPattern.FindSubmatch(body)
		if m == nil {
			return &APIError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("response carries no request id")}
		}
		rid = string(m[1])
		return nil
	})
	if err != nil {
		return "", err
	}
	return rid, nil
}

// BlastResults polls a submitted search. A search that is still running comes
// back with Status BlastWaiting and no hits; an expired or unknown RID is
// reported as an APIError wrapping ErrNotFound.
func (c *Client) BlastResults(ctx context.Context, rid string) (*protein.BlastResult, error) {
	const op = "blast.results"

	query := url.Values{
		"CMD":         {"Get"},
		"RID":         {rid},
		"FORMAT_TYPE": {"JSON2_S"},
	}
	endpoint := c.blastURL + "?" + query.Encode()

	result := &protein.BlastResult{RID: rid}
	err := c.call(ctx, op, endpoint, newGet(endpoint, "application/json"), func(resp *http.Response) error {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlastBody))
		if err != nil {
			return &APIError{Op: op, Err: err}
		}

		// reports are JSON; progress pages are HTML with a Status=<state> marker
		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
			var out blastOutput
			if err := json.Unmarshal(trimmed, &out); err != nil {
				return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
			}
			result.Status = protein.BlastReady
			result.Hits = out.hits()
			return nil
		}

		m := statusPattern.FindSubmatch(body)
		if m == nil {
			return &APIError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("response carries no search status")}
		}
		switch status := string(m[1]); status {
		case "WAITING", "READY":
			// READY without a JSON body means the report is still being formatted
			result.Status = protein.BlastWaiting
		case "FAILED":
			result.Status = protein.BlastFailed
		case "UNKNOWN":
			return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: request id %s", ErrNotFound, rid)}
		default:
			return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected search status %q", status)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
