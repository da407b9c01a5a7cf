package remote

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/foldscope/pkg/protein"
)

const submitPage = `<html><body>
<!--QBlastInfoBegin
    RID = 4N3MZ8UX016
    RTOE = 18
QBlastInfoEnd
--></body></html>`

const reportBody = `{"BlastOutput2": [{"report": {"program": "blastp", "results": {"search": {
  "query_id": "Query_1",
  "hits": [
    {"num": 1, "len": 142,
     "description": [{"id": "sp|P69905.2|", "accession": "P69905", "title": "Hemoglobin subunit alpha", "sciname": "Homo sapiens"}],
     "hsps": [{"num": 1, "bit_score": 290.4, "evalue": 1.2e-98, "identity": 142, "align_len": 142},
              {"num": 2, "bit_score": 20.1, "evalue": 3.5, "identity": 9, "align_len": 30}]},
    {"num": 2, "len": 142,
     "description": [{"accession": "P01942", "title": "Hemoglobin subunit alpha", "sciname": "Mus musculus"}],
     "hsps": []},
    {"num": 3, "description": [], "hsps": []}
  ]
}}}}]}`

func TestSubmitBlast(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/blast", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Put", r.PostForm.Get("CMD"))
		assert.Equal(t, "blastp", r.PostForm.Get("PROGRAM"))
		assert.Equal(t, "nr", r.PostForm.Get("DATABASE"))
		assert.Equal(t, "MVLSPADKTN", r.PostForm.Get("QUERY"))
		_, _ = w.Write([]byte(submitPage))
	}))

	rid, err := c.SubmitBlast(context.Background(), "MVLSPADKTN")
	require.NoError(t, err)
	assert.Equal(t, "4N3MZ8UX016", rid)
}

func TestSubmitBlastRetriesWithFreshBody(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "MKV", r.PostForm.Get("QUERY"))
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(submitPage))
	}))

	rid, err := c.SubmitBlast(context.Background(), "MKV")
	require.NoError(t, err)
	assert.Equal(t, "4N3MZ8UX016", rid)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSubmitBlastWithoutRID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>Error: query is empty</html>`))
	}))

	_, err := c.SubmitBlast(context.Background(), "MKV")
	assert.ErrorContains(t, err, "no request id")
}

func TestBlastResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Get", r.URL.Query().Get("CMD"))
		assert.Equal(t, "4N3MZ8UX016", r.URL.Query().Get("RID"))
		assert.Equal(t, "JSON2_S", r.URL.Query().Get("FORMAT_TYPE"))
		_, _ = w.Write([]byte(reportBody))
	}))

	result, err := c.BlastResults(context.Background(), "4N3MZ8UX016")
	require.NoError(t, err)
	assert.Equal(t, "4N3MZ8UX016", result.RID)
	assert.Equal(t, protein.BlastReady, result.Status)
	require.Len(t, result.Hits, 2)

	assert.Equal(t, protein.BlastHit{
		Accession:   "P69905",
		Title:       "Hemoglobin subunit alpha",
		Organism:    "Homo sapiens",
		Length:      142,
		BitScore:    290.4,
		EValue:      1.2e-98,
		Identity:    142,
		AlignLength: 142,
	}, result.Hits[0])
	assert.Equal(t, "P01942", result.Hits[1].Accession)
	assert.Zero(t, result.Hits[1].BitScore)
}

func TestBlastResultsProgress(t *testing.T) {
	tests := []struct {
		name string
		page string
		want protein.BlastStatus
	}{
		{"waiting", `<html><!--QBlastInfoBegin
	Status=WAITING
QBlastInfoEnd--></html>`, protein.BlastWaiting},
		{"ready but not formatted", `<!--QBlastInfoBegin Status=READY QBlastInfoEnd-->`, protein.BlastWaiting},
		{"failed", `<!--QBlastInfoBegin Status=FAILED QBlastInfoEnd-->`, protein.BlastFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.page))
			}))

			result, err := c.BlastResults(context.Background(), "RID1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			assert.Empty(t, result.Hits)
		})
	}
}

func TestBlastResultsUnknownRID(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<!--QBlastInfoBegin Status=UNKNOWN QBlastInfoEnd-->`))
	}))

	for i := 0; i < 4; i++ {
		_, err := c.BlastResults(context.Background(), "EXPIRED")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.EqualValues(t, 4, calls.Load(), "unknown request ids neither retry nor trip the breaker")
}
