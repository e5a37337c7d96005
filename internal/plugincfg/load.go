package plugincfg

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/plugincfg-merge/internal/fetch"
)

type LoadOptions struct {
	Fetch  fetch.Options
	Logger *slog.Logger

	// MaxParallel bounds concurrent reads. Default 4.
	MaxParallel int
}

// LoadAll reads every source and parses it. Reads run concurrently; parsing
// runs in argument order, so a parse failure always names the earliest bad input.
func LoadAll(ctx context.Context, sources []string, opt LoadOptions) ([]*Document, error) {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := opt.MaxParallel
	if limit <= 0 {
		limit = 4
	}

	raw := make([][]byte, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			b, err := fetch.ReadWithOptions(gctx, fetch.KindInput, src, opt.Fetch)
			if err != nil {
				return err
			}
			raw[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(sources))
	for i, src := range sources {
		log.Debug("Processing file", "file", src, "seq", i)
		doc, err := Parse(src, raw[i])
		if err != nil {
			return nil, err
		}
		log.Debug("Parsed file", "file", src,
			"serverClusters", len(doc.Clusters),
			"virtualHostGroups", len(doc.VhostGroups),
			"uriGroups", len(doc.URIGroups),
			"routes", len(doc.Routes),
			"encoding", doc.Encoding)
		docs = append(docs, doc)
	}
	return docs, nil
}
