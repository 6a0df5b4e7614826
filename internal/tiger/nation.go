package tiger

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// NationGEOID is the summary-level identifier of the national boundary.
const NationGEOID = "0100000US"

// NationHandle is the process-wide handle for the national cartographic
// boundary: constructed once, resolved lazily on first geometry access, and
// shared as the default containment region and water-clipping boundary.
// Collections built without a boundary source carry a nil handle and skip
// clipping.
type NationHandle struct {
	once     sync.Once
	area     *Area
	makeArea func() *Area
}

// NewNationHandle creates a handle whose area loads from the given
// cartographic boundary shapefile URL.
func NewNationHandle(d *deps, shapefileURL string) *NationHandle {
	if shapefileURL == "" {
		return nil
	}
	return &NationHandle{
		makeArea: func() *Area {
			// The nation's own deps must not point back at this handle.
			nationDeps := &deps{client: d.client, engine: d.engine, download: d.download}
			a := newArea(FromURL{URL: shapefileURL}, nationDeps, false)
			a.geoid = NationGEOID
			a.layerName = "US"
			a.name = "United States (cartographic boundary)"
			a.baseName = "United States"
			return a
		},
	}
}

// Area returns the national boundary area, constructing it on first use.
// The area's geometry still resolves lazily and memoized.
func (h *NationHandle) Area(ctx context.Context) (*Area, error) {
	h.once.Do(func() {
		h.area = h.makeArea()
	})
	return h.area, nil
}

// Is reports whether the given area is the national boundary singleton.
func (h *NationHandle) Is(a *Area) bool {
	return h != nil && h.area != nil && h.area == a
}

// loadShapefile reads a shapefile (plain .shp or zipped), unions its polygon
// shapes into the area's geometry, and takes attributes from the first
// record's DBF fields.
func (a *Area) loadShapefile(ctx context.Context, path string) error {
	var (
		reader shapeReader
		err    error
	)
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		reader, err = shp.OpenZip(path)
	} else {
		reader, err = shp.Open(path)
	}
	if err != nil {
		return eris.Wrapf(err, "tiger: open shapefile %s", path)
	}
	defer reader.Close() //nolint:errcheck

	fields := reader.Fields()
	var geoms []geom.T
	row := 0
	for reader.Next() {
		_, shape := reader.Shape()
		if g := shapeToGeom(shape); g != nil {
			geoms = append(geoms, g)
		}

		if row == 0 {
			attrs := make(map[string]string, len(fields))
			for i, f := range fields {
				attrs[f.String()] = reader.ReadAttribute(row, i)
			}
			if a.name == "" {
				a.name = attrs["NAME"]
			}
			delete(attrs, "NAME")
			a.attrs = attrs
		}
		row++
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return eris.Wrapf(err, "tiger: read shapefile %s", path)
	}
	if len(geoms) == 0 {
		return eris.Errorf("tiger: shapefile %s contains no polygon shapes", path)
	}
	if a.attrs == nil {
		a.attrs = map[string]string{}
	}

	merged, err := a.deps.engine.Union(geoms)
	if err != nil {
		return err
	}
	a.fileGeom = merged

	zap.L().Debug("loaded boundary shapefile",
		zap.String("path", path),
		zap.Int("records", row),
	)
	return nil
}

// shapeReader is the subset of go-shp readers the loader needs; both
// shp.Reader and shp.ZipReader satisfy it.
type shapeReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Fields() []shp.Field
	ReadAttribute(row, field int) string
	Err() error
	Close() error
}

// downloadTemp fetches a URL to a temp file and returns its path. Used for
// URL resolution sources and the national boundary shapefile.
func downloadTemp(client *http.Client, userAgent string) func(ctx context.Context, rawURL string) (string, error) {
	return func(ctx context.Context, rawURL string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", eris.Wrap(err, "tiger: create download request")
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			return "", eris.Wrapf(err, "tiger: download %s", rawURL)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return "", eris.Errorf("tiger: download %s: unexpected status %d", rawURL, resp.StatusCode)
		}

		pattern := "boundary-*" + filepath.Ext(rawURL)
		file, err := os.CreateTemp("", pattern)
		if err != nil {
			return "", eris.Wrap(err, "tiger: create temp file")
		}
		defer file.Close() //nolint:errcheck

		if _, err := io.Copy(file, resp.Body); err != nil {
			return "", eris.Wrap(err, "tiger: write temp file")
		}
		return file.Name(), nil
	}
}
