package utils

import (
	"strings"

	"goflare.io/foldscope/internal/models"
)

// CollectionKey returns the storage key holding every entry of a collection.
func CollectionKey(prefix string, collection models.Collection) string {
	return prefix + ":" + string(collection)
}

// NormalizeQuery trims and collapses whitespace so equivalent searches share a key.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// NormalizeAccession upper-cases a UniProt accession.
func NormalizeAccession(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeSequence drops FASTA header lines and whitespace and upper-cases the residues.
func NormalizeSequence(seq string) string {
	var b strings.Builder
	for _, line := range strings.Split(seq, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		for _, f := range strings.Fields(line) {
			b.WriteString(strings.ToUpper(f))
		}
	}
	return b.String()
}
