package arcgis

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Count issues a count-only probe for the records matching spec.
func (c *Client) Count(ctx context.Context, spec FetchSpec) (int, error) {
	params := c.baseParams(spec, "json")
	params.Set("returnCountOnly", "true")
	params.Set("returnGeometry", "false")

	qr, err := c.query(ctx, spec.LayerID, params)
	if err != nil {
		return 0, err
	}
	if qr.Count == nil {
		return 0, &DecodeError{
			URL: c.opts.BaseURL,
			Err: eris.Errorf("count probe for layer %d returned no count", spec.LayerID),
		}
	}
	return *qr.Count, nil
}

// Fetch retrieves every record matching spec, paging through
// resultOffset/resultRecordCount windows concurrently and assembling one
// GEOID-deduplicated feature set. On a transient service failure it halves
// the page window and retries the whole fetch, up to PageRetries times.
func (c *Client) Fetch(ctx context.Context, spec FetchSpec) (*FeatureSet, error) {
	count := spec.Count
	if count < 0 {
		probed, err := c.Count(ctx, spec)
		if err != nil {
			return nil, err
		}
		count = probed
	}

	pageSize := spec.PageSize
	if pageSize <= 0 {
		pageSize = c.opts.PageSize
	}

	for attempt := 0; ; attempt++ {
		fs, err := c.fetchPages(ctx, spec, count, pageSize)
		if err == nil {
			return fs, nil
		}

		var se *ServiceError
		if !eris.As(err, &se) || !se.Transient() || attempt >= c.opts.PageRetries {
			return nil, err
		}

		pageSize = max(pageSize/2, 1)
		c.stats.fetchRetries.Add(1)
		zap.L().Warn("paged fetch failed, shrinking page window",
			zap.Int("layer", spec.LayerID),
			zap.Int("attempt", attempt+1),
			zap.Int("page_size", pageSize),
			zap.Error(err),
		)

		timer := time.NewTimer(c.opts.RetrySleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(ctx.Err(), "arcgis: fetch canceled")
		case <-timer.C:
		}
	}
}

// fetchPages runs one full paging pass at a fixed window size. Pages are
// requested concurrently in waves of at most ChunkSize; a wave's results are
// merged only after every request in it has completed.
func (c *Client) fetchPages(ctx context.Context, spec FetchSpec, count, pageSize int) (*FeatureSet, error) {
	numPages := (count + pageSize - 1) / pageSize
	if numPages < 1 {
		numPages = 1
	}

	pages := make([][]*Feature, numPages)
	truncated := make([]bool, numPages)

	for start := 0; start < numPages; start += c.opts.ChunkSize {
		end := min(start+c.opts.ChunkSize, numPages)

		g, gctx := errgroup.WithContext(ctx)
		for page := start; page < end; page++ {
			page := page
			g.Go(func() error {
				feats, short, err := c.fetchPage(gctx, spec, page*pageSize, pageSize)
				if err != nil {
					return err
				}
				pages[page] = feats
				truncated[page] = short
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	merged := make([]*Feature, 0, count)
	anyTruncated := false
	for page, feats := range pages {
		merged = append(merged, feats...)
		if truncated[page] {
			anyTruncated = true
		}
	}

	// The server may flag exceededTransferLimit even though every window was
	// explicitly requested. Re-page the uncovered tail once before flagging
	// the set as a completeness risk.
	if anyTruncated && len(merged) < count {
		tail, short, err := c.fetchTail(ctx, spec, len(merged), count, pageSize)
		if err != nil {
			return nil, err
		}
		merged = append(merged, tail...)
		anyTruncated = short || len(merged) < count
	}

	fs := dedupe(merged)
	if anyTruncated {
		c.stats.truncations.Add(1)
		fs.Truncated = true
		zap.L().Warn("feature service truncated results despite full page coverage",
			zap.Int("layer", spec.LayerID),
			zap.Int("expected", count),
			zap.Int("received", fs.Len()),
		)
	}
	return fs, nil
}

// fetchTail sequentially pages the window [from, count) after a truncated
// pass. Returns the extra features and whether truncation was seen again.
func (c *Client) fetchTail(ctx context.Context, spec FetchSpec, from, count, pageSize int) ([]*Feature, bool, error) {
	var extra []*Feature
	short := false
	for offset := from; offset < count; offset += pageSize {
		feats, s, err := c.fetchPage(ctx, spec, offset, pageSize)
		if err != nil {
			return nil, false, err
		}
		if len(feats) == 0 {
			break
		}
		extra = append(extra, feats...)
		if s {
			short = true
		}
	}
	return extra, short, nil
}

func (c *Client) fetchPage(ctx context.Context, spec FetchSpec, offset, size int) ([]*Feature, bool, error) {
	params := c.baseParams(spec, "geojson")
	params.Set("resultOffset", fmt.Sprint(offset))
	params.Set("resultRecordCount", fmt.Sprint(size))

	qr, err := c.query(ctx, spec.LayerID, params)
	if err != nil {
		return nil, false, err
	}
	c.stats.pages.Add(1)

	feats := make([]*Feature, 0, len(qr.Features))
	for _, gf := range qr.Features {
		feats = append(feats, fromGeoJSON(gf))
	}
	return feats, qr.truncated(), nil
}

// dedupe drops features repeating an already-seen GEOID, preserving order.
// Features without a GEOID are kept as-is.
func dedupe(feats []*Feature) *FeatureSet {
	seen := make(map[string]bool, len(feats))
	out := make([]*Feature, 0, len(feats))
	for _, f := range feats {
		id := f.GEOID()
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, f)
	}
	return &FeatureSet{Features: out}
}
