package arcgis

import (
	"context"
	"encoding/json"
	"net/url"
)

// LayerInfo describes one queryable table in the map service metadata.
type LayerInfo struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	MaxRecordCount int     `json:"maxRecordCount"`
	Fields         []Field `json:"fields"`
}

// Field is one attribute column in a layer schema.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

type layersResponse struct {
	Error  *errorEnvelope `json:"error"`
	Layers []LayerInfo    `json:"layers"`
}

// ServiceLayers fetches the map service's layer metadata.
func (c *Client) ServiceLayers(ctx context.Context) ([]LayerInfo, error) {
	params := url.Values{}
	params.Set("f", "json")

	body, err := c.get(ctx, "layers", params)
	if err != nil {
		return nil, err
	}

	var lr layersResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		c.stats.decodeErrors.Add(1)
		return nil, &DecodeError{URL: c.opts.BaseURL + "/layers", Err: err}
	}
	if lr.Error != nil {
		c.stats.serviceErrors.Add(1)
		return nil, &ServiceError{Code: lr.Error.Code, Message: lr.Error.Message, Details: lr.Error.Details}
	}
	return lr.Layers, nil
}

// LayerPageSize returns the page window for the named layer: the configured
// per-layer override if present, else the global default.
func (c *Client) LayerPageSize(layerName string) int {
	if n, ok := c.opts.LayerPageSizes[layerName]; ok && n > 0 {
		return n
	}
	return c.opts.PageSize
}
