package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/censusgeo/internal/arcgis"
	"github.com/sells-group/censusgeo/internal/geography"
	"github.com/sells-group/censusgeo/internal/spatial"
	"github.com/sells-group/censusgeo/internal/tiger"
)

// appEnv holds the initialized service client, geometry engine, and area
// collection shared by the commands.
type appEnv struct {
	Client *arcgis.Client
	Engine *spatial.Engine
	Areas  *tiger.AreaCollection
}

// initEnv builds the map service client and discovers its layers. Callers
// pass the same env to every operation of a command invocation.
func initEnv(ctx context.Context) (*appEnv, error) {
	client := arcgis.NewClient(arcgis.Options{
		BaseURL:        cfg.Service.BaseURL,
		UserAgent:      cfg.Service.UserAgent,
		Timeout:        time.Duration(cfg.Service.TimeoutSecs) * time.Second,
		PageSize:       cfg.Service.PageSize,
		ChunkSize:      cfg.Service.ChunkSize,
		PageRetries:    cfg.Service.PageRetries,
		RetrySleep:     time.Duration(cfg.Service.RetrySleepSecs) * time.Second,
		RatePerSecond:  cfg.Service.RatePerSecond,
		OutSR:          cfg.Service.OutSR,
		GeomPrecision:  cfg.Service.GeomPrecision,
		LayerPageSizes: tiger.DefaultLayerPageSizes(),
	})

	engine := spatial.NewEngine()

	areas, err := tiger.NewAreaCollection(ctx, client, engine, tiger.CollectionOptions{
		AreaThreshold:  cfg.Spatial.AreaThreshold,
		BoundaryURL:    cfg.Nation.ShapefileURL,
		UserAgent:      cfg.Service.UserAgent,
		MatchCutoff:    cfg.Match.ScoreCutoff,
		MatchShortlist: cfg.Match.Shortlist,
	})
	if err != nil {
		return nil, err
	}

	return &appEnv{Client: client, Engine: engine, Areas: areas}, nil
}

// loadGeographies fetches the dataset's supported geography hierarchies.
func loadGeographies(ctx context.Context) (*geography.Collection, error) {
	zap.L().Debug("loading geography definitions", zap.String("url", cfg.Geography.DefinitionsURL))
	client := &http.Client{Timeout: time.Duration(cfg.Service.TimeoutSecs) * time.Second}
	return geography.Fetch(ctx, client, cfg.Geography.DefinitionsURL)
}
