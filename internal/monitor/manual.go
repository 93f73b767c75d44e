package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/uksgomel/uks_checker/internal/fetcher"
	"github.com/uksgomel/uks_checker/internal/probe"
	"github.com/uksgomel/uks_checker/internal/repository"
)

// LatestDocument is a freshly downloaded edition.
type LatestDocument struct {
	probe.Candidate
	Hash string
	Data []byte
}

// DocumentTooLargeError is returned by FetchLatestDocument when the edition
// exceeded the read ceiling. Size is -1 when the server did not announce it.
type DocumentTooLargeError struct {
	probe.Candidate
	Size  int64
	Limit int64
	Err   error
}

func (e *DocumentTooLargeError) Error() string {
	return fmt.Sprintf("document %s too large: %v", e.Name, e.Err)
}

func (e *DocumentTooLargeError) Unwrap() error { return e.Err }

// GetState returns a copy of the persisted state.
func (d *Detector) GetState() repository.State {
	return d.Store.Snapshot()
}

// FetchLatestDocument downloads the current edition without touching state.
func (d *Detector) FetchLatestDocument(ctx context.Context) (*LatestDocument, error) {
	c, ok, err := d.Documents.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCandidate
	}
	data, err := d.download(ctx, c.URL)
	if err != nil {
		var tooLarge *fetcher.BodyTooLargeError
		if errors.As(err, &tooLarge) {
			return nil, &DocumentTooLargeError{Candidate: c, Size: tooLarge.Size, Limit: tooLarge.Limit, Err: err}
		}
		return nil, err
	}
	return &LatestDocument{Candidate: c, Hash: probe.Hash(data), Data: data}, nil
}

// FetchLatestArticle returns the current first article without touching state.
func (d *Detector) FetchLatestArticle(ctx context.Context) (probe.Article, error) {
	a, ok, err := d.Articles.Latest(ctx)
	if err != nil {
		return probe.Article{}, err
	}
	if !ok {
		return probe.Article{}, ErrNoCandidate
	}
	return a, nil
}

// MaxAttachmentBytes is the largest document that is sent as a file.
func (d *Detector) MaxAttachmentBytes() int64 {
	return d.opts.MaxAttachmentBytes
}
