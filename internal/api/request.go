package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/report"
)

const (
	maxBodyBytes = 4 << 20
	maxZoom      = 22
)

type reportRequest struct {
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Zoom              *int     `json:"zoom"`
	PropertyType      string   `json:"propertyType"`
	IsochronePolygons []string `json:"isochronePolygons"`
	ReportID          string   `json:"reportId"`
}

// ParseReportRequest decodes a create-or-fetch body. A request carrying a
// report id needs nothing else; any other request needs a point, a zoom and
// a property type, and every isochrone polygon must parse.
func ParseReportRequest(r *http.Request) (report.Request, error) {
	var body reportRequest
	if err := decodeJSON(r, &body); err != nil {
		return report.Request{}, err
	}
	if id := strings.TrimSpace(body.ReportID); id != "" {
		return report.Request{ReportID: id}, nil
	}

	if body.Latitude == nil || body.Longitude == nil {
		return report.Request{}, errors.New("latitude and longitude are required")
	}
	c := model.Coordinate{Lat: *body.Latitude, Lon: *body.Longitude}
	if err := c.Validate(); err != nil {
		return report.Request{}, err
	}
	if body.Zoom == nil {
		return report.Request{}, errors.New("missing required field: zoom")
	}
	zoom := *body.Zoom
	if zoom < 0 || zoom > maxZoom {
		return report.Request{}, fmt.Errorf("zoom %d must be in [0,%d]", zoom, maxZoom)
	}
	pt := strings.TrimSpace(body.PropertyType)
	if pt == "" {
		return report.Request{}, errors.New("missing required field: propertyType")
	}

	polys := make([]orb.Geometry, 0, len(body.IsochronePolygons))
	for i, raw := range body.IsochronePolygons {
		g, err := parsePolygon(raw)
		if err != nil {
			return report.Request{}, fmt.Errorf("isochronePolygons[%d]: %w", i, err)
		}
		polys = append(polys, g)
	}

	return report.Request{
		Coordinate:   c,
		Zoom:         zoom,
		PropertyType: pt,
		Isochrones:   polys,
	}, nil
}

// parsePolygon accepts a GeoJSON Polygon or MultiPolygon, bare or wrapped
// in a Feature.
func parsePolygon(raw string) (orb.Geometry, error) {
	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &hdr); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var g orb.Geometry
	switch hdr.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature: %w", err)
		}
		g = f.Geometry
	default:
		gg, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
		}
		g = gg.Geometry()
	}

	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return g, nil
	case nil:
		return nil, errors.New("geometry is empty")
	default:
		return nil, fmt.Errorf("geometry type %s must be Polygon or MultiPolygon", g.GeoJSONType())
	}
}

type pointRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ParsePoint reads lat/lon from the query string or, for POST, from a JSON
// body with latitude/longitude.
func ParsePoint(r *http.Request) (model.Coordinate, error) {
	var c model.Coordinate
	if r.Method == http.MethodPost {
		var body pointRequest
		if err := decodeJSON(r, &body); err != nil {
			return c, err
		}
		if body.Latitude == nil || body.Longitude == nil {
			return c, errors.New("latitude and longitude are required")
		}
		c = model.Coordinate{Lat: *body.Latitude, Lon: *body.Longitude}
	} else {
		q := r.URL.Query()
		lat, err := parseFloat(q.Get("lat"))
		if err != nil {
			return c, fmt.Errorf("lat: %w", err)
		}
		lon, err := parseFloat(q.Get("lon"))
		if err != nil {
			return c, fmt.Errorf("lon: %w", err)
		}
		c = model.Coordinate{Lat: lat, Lon: lon}
	}
	if err := c.Validate(); err != nil {
		return model.Coordinate{}, err
	}
	return c, nil
}

func parseFloat(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("missing required parameter")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}
