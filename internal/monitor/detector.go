// Package monitor compares probe results against the persisted state and
// drives downloads, notifications and state updates.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/uksgomel/uks_checker/internal/cache"
	"github.com/uksgomel/uks_checker/internal/fetcher"
	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/probe"
	"github.com/uksgomel/uks_checker/internal/repository"
)

type DocumentSource interface {
	Latest(ctx context.Context) (probe.Candidate, bool, error)
}

type ArticleSource interface {
	Latest(ctx context.Context) (probe.Article, bool, error)
}

type PageSource interface {
	Fingerprint(ctx context.Context) (string, error)
	URL() string
}

// Dispatcher delivers change notifications.
type Dispatcher interface {
	NewDocument(ctx context.Context, name string, data []byte) error
	DocumentOversize(ctx context.Context, name, url string, size, limit int64) error
	NewArticle(ctx context.Context, title, url string) error
	PageChanged(ctx context.Context, url string) error
}

// Reporter receives cycle failures worth a human look.
type Reporter interface {
	Notify(err error, component string, extra map[string]interface{})
}

// Deps are the collaborators of a Detector. Reporter is optional.
type Deps struct {
	Store      cache.StateStore
	Documents  DocumentSource
	Articles   ArticleSource
	Page       PageSource
	Fetcher    fetcher.Fetcher
	Dispatcher Dispatcher
	Reporter   Reporter
}

type Options struct {
	DownloadTimeout    time.Duration
	MaxAttachmentBytes int64
	DownloadsDir       string
}

// Detector runs the fetch, compare, notify, persist cycle for each kind.
// At most one cycle per kind runs at a time.
type Detector struct {
	Deps
	opts Options

	guards map[probe.Kind]*sync.Mutex
}

func New(deps Deps, opts Options) (*Detector, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("state store is required")
	case deps.Documents == nil, deps.Articles == nil, deps.Page == nil:
		return nil, errors.New("all probes are required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case opts.MaxAttachmentBytes <= 0:
		return nil, errors.New("max attachment bytes must be positive")
	}

	return &Detector{
		Deps: deps,
		opts: opts,
		guards: map[probe.Kind]*sync.Mutex{
			probe.KindDocuments: {},
			probe.KindArticles:  {},
			probe.KindPage:      {},
		},
	}, nil
}

// Probe runs the cycle for kind.
func (d *Detector) Probe(ctx context.Context, kind probe.Kind) Outcome {
	switch kind {
	case probe.KindDocuments:
		return d.ProbeDocuments(ctx)
	case probe.KindArticles:
		return d.ProbeArticles(ctx)
	case probe.KindPage:
		return d.ProbeStaticPage(ctx)
	default:
		return Outcome{Kind: kind, Status: StatusFailed, Err: fmt.Errorf("unknown probe kind %q", kind)}
	}
}

func (d *Detector) ProbeDocuments(ctx context.Context) Outcome {
	return d.guarded(probe.KindDocuments, func() Outcome { return d.probeDocuments(ctx) })
}

func (d *Detector) ProbeArticles(ctx context.Context) Outcome {
	return d.guarded(probe.KindArticles, func() Outcome { return d.probeArticles(ctx) })
}

func (d *Detector) ProbeStaticPage(ctx context.Context) Outcome {
	return d.guarded(probe.KindPage, func() Outcome { return d.probeStaticPage(ctx) })
}

func (d *Detector) guarded(kind probe.Kind, run func() Outcome) Outcome {
	log := logger.WithKind("detector", string(kind))

	mu := d.guards[kind]
	if !mu.TryLock() {
		log.Info("previous cycle still running, skipping")
		return Outcome{Kind: kind, Status: StatusFailed, Err: ErrProbeInFlight}
	}
	defer mu.Unlock()

	start := time.Now()
	out := run()
	out.Kind = kind

	entry := log.WithField("status", out.Status).WithField("took", time.Since(start).Round(time.Millisecond))
	if out.Err == nil {
		entry.Info("cycle finished")
		return out
	}
	if transient(out.Err) {
		entry.Warnf("cycle aborted: %v", out.Err)
		return out
	}
	entry.Errorf("cycle failed: %v", out.Err)
	if d.Reporter != nil {
		d.Reporter.Notify(out.Err, "detector", map[string]interface{}{"kind": string(kind), "url": out.URL})
	}
	return out
}

func (d *Detector) probeDocuments(ctx context.Context) Outcome {
	c, ok, err := d.Documents.Latest(ctx)
	if err != nil {
		return failed(Outcome{}, err)
	}
	if !ok {
		return Outcome{Status: StatusNotFound}
	}

	out := Outcome{Name: c.Name, URL: c.URL}
	data, err := d.download(ctx, c.URL)
	if err != nil {
		var tooLarge *fetcher.BodyTooLargeError
		if errors.As(err, &tooLarge) {
			out.Size = tooLarge.Size
			limit := d.opts.MaxAttachmentBytes
			if tooLarge.Size < 0 {
				limit = tooLarge.Limit
			}
			return d.oversize(ctx, out, limit)
		}
		return failed(out, err)
	}
	out.Hash = probe.Hash(data)
	out.Size = int64(len(data))

	snap := d.Store.Snapshot()
	if repository.Value(snap.LastDocumentHash) == out.Hash {
		out.Status = StatusUnchanged
		return out
	}
	if out.Size > d.opts.MaxAttachmentBytes {
		return d.oversize(ctx, out, d.opts.MaxAttachmentBytes)
	}
	out.Status = changeStatus(snap.LastDocumentHash)

	d.archive(c.Name, data)

	if err := d.Dispatcher.NewDocument(ctx, c.Name, data); err != nil {
		return failed(out, fmt.Errorf("dispatch document: %w", err))
	}

	name, hash := c.Name, out.Hash
	if _, err := d.Store.Update(context.WithoutCancel(ctx), func(st *repository.State) bool {
		st.LastDocumentName = repository.Ptr(name)
		st.LastDocumentHash = repository.Ptr(hash)
		return true
	}); err != nil {
		return failed(out, fmt.Errorf("persist document state: %w", err))
	}
	return out
}

// oversize announces an edition too large to attach. State is left alone so
// the same edition is reported again next cycle. When the size is unknown,
// limit is the read ceiling the download was cut off at.
func (d *Detector) oversize(ctx context.Context, out Outcome, limit int64) Outcome {
	if err := d.Dispatcher.DocumentOversize(ctx, out.Name, out.URL, out.Size, limit); err != nil {
		return failed(out, fmt.Errorf("dispatch oversize notice: %w", err))
	}
	out.Status = StatusOversize
	return out
}

func (d *Detector) probeArticles(ctx context.Context) Outcome {
	a, ok, err := d.Articles.Latest(ctx)
	if err != nil {
		return failed(Outcome{}, err)
	}
	if !ok {
		return Outcome{Status: StatusNotFound}
	}

	out := Outcome{Title: a.Title, URL: a.URL}
	snap := d.Store.Snapshot()
	if repository.Value(snap.LastArticleURL) == a.URL {
		out.Status = StatusUnchanged
		return out
	}
	out.Status = changeStatus(snap.LastArticleURL)

	if err := d.Dispatcher.NewArticle(ctx, a.Title, a.URL); err != nil {
		return failed(out, fmt.Errorf("dispatch article: %w", err))
	}

	url := a.URL
	if _, err := d.Store.Update(context.WithoutCancel(ctx), func(st *repository.State) bool {
		st.LastArticleURL = repository.Ptr(url)
		return true
	}); err != nil {
		return failed(out, fmt.Errorf("persist article state: %w", err))
	}
	return out
}

// probeStaticPage persists the new hash before notifying; the notification
// is advisory and its failure does not roll the hash back.
func (d *Detector) probeStaticPage(ctx context.Context) Outcome {
	hash, err := d.Page.Fingerprint(ctx)
	if err != nil {
		return failed(Outcome{URL: d.Page.URL()}, err)
	}

	out := Outcome{URL: d.Page.URL(), Hash: hash}
	snap := d.Store.Snapshot()
	if repository.Value(snap.LastPageHash) == hash {
		out.Status = StatusUnchanged
		return out
	}
	out.Status = changeStatus(snap.LastPageHash)

	if _, err := d.Store.Update(ctx, func(st *repository.State) bool {
		st.LastPageHash = repository.Ptr(hash)
		return true
	}); err != nil {
		return failed(out, fmt.Errorf("persist page state: %w", err))
	}

	if err := d.Dispatcher.PageChanged(ctx, out.URL); err != nil {
		logger.WithKind("detector", string(probe.KindPage)).Warnf("page change notification lost: %v", err)
		out.Err = fmt.Errorf("dispatch page notice: %w", err)
	}
	return out
}

func (d *Detector) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.Fetcher.Get(ctx, url, d.opts.DownloadTimeout)
	if err != nil {
		if fetcher.IsNotFound(err) {
			return nil, &fetcher.TransientError{URL: url, Err: fmt.Errorf("not yet available: %w", err)}
		}
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return resp.Body, nil
}

// archive keeps a copy of a delivered edition. Failures are logged only.
func (d *Detector) archive(name string, data []byte) {
	if d.opts.DownloadsDir == "" {
		return
	}
	log := logger.WithKind("detector", string(probe.KindDocuments))
	if err := os.MkdirAll(d.opts.DownloadsDir, 0o755); err != nil {
		log.Warnf("cannot create downloads dir: %v", err)
		return
	}
	path := filepath.Join(d.opts.DownloadsDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warnf("cannot archive %s: %v", name, err)
	}
}

func failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	return out
}

func transient(err error) bool {
	return errors.Is(err, ErrProbeInFlight) || fetcher.IsTransient(err) || errors.Is(err, context.Canceled)
}
