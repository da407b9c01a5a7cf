package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"goflare.io/foldscope/pkg/protein"
)

// ErrUnsupportedFormat is returned for a structure format other than pdb or cif.
var ErrUnsupportedFormat = errors.New("unsupported structure format")

// maxStructureFile bounds a downloaded model file.
const maxStructureFile = 256 << 20

// DownloadStructure fetches the AlphaFold model file of a UniProt accession.
func (c *Client) DownloadStructure(ctx context.Context, uniprotID string, format protein.StructureFormat) ([]byte, error) {
	const op = "alphafold.download"

	if !format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	endpoint := fmt.Sprintf("%s/AF-%s-F1-model_v4.%s", c.filesURL, url.PathEscape(uniprotID), format)

	var data []byte
	err := c.call(ctx, op, endpoint, newGet(endpoint, "*/*"), func(resp *http.Response) error {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxStructureFile))
		if err != nil {
			return &APIError{Op: op, Err: err}
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
