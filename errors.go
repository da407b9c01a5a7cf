package foldscope

import (
	"errors"

	"goflare.io/foldscope/internal/cache/multi"
	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/internal/remote"
	"goflare.io/foldscope/pkg/measurement"
)

var (
	ErrEmptyQuery         = errors.New("search query is empty")
	ErrEmptyID            = errors.New("uniprot id is empty")
	ErrEmptySequence      = errors.New("sequence is empty")
	ErrEmptyRID           = errors.New("blast request id is empty")
	ErrBlastFailed        = errors.New("blast search failed")
	ErrUnsupportedFormat  = remote.ErrUnsupportedFormat
	ErrStorageUnavailable = multi.ErrStorageUnavailable
	ErrUnknownCollection  = models.ErrUnknownCollection
	ErrNotFound           = remote.ErrNotFound
	ErrInvalidInput       = measurement.ErrInvalidInput
)

// APIError describes a failed UniProt, AlphaFold or BLAST call.
type APIError = remote.APIError
