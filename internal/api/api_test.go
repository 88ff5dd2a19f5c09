package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/propscope/internal/classify"
	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/report"
)

type fakeReports struct {
	calls   int
	lastReq report.Request
	err     error
	nearby  []model.Report
	near    model.Coordinate
	refresh string
}

func (f *fakeReports) CreateOrFetch(_ context.Context, req report.Request) (report.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return report.Response{}, f.err
	}
	return report.Response{
		ReportID: "rep-1", GroupNames: []string{"Overview"}, Coordinate: req.Coordinate,
	}, nil
}

func (f *fakeReports) Status(_ context.Context, id string) (report.Response, error) {
	if id != "rep-1" {
		return report.Response{}, fmt.Errorf("report %q: %w", id, report.ErrNotFound)
	}
	return report.Response{ReportID: id, Complete: true, Coordinate: model.Coordinate{Lat: 1, Lon: 2}}, nil
}

func (f *fakeReports) ReportsNear(_ context.Context, c model.Coordinate) ([]model.Report, error) {
	f.near = c
	return f.nearby, nil
}

func (f *fakeReports) RefreshManifest(_ context.Context, pt string) (report.RefreshResult, error) {
	f.refresh = pt
	if pt != "Residential" {
		return report.RefreshResult{}, report.ErrNotFound
	}
	return report.RefreshResult{Manifest: model.Manifest{PropertyType: pt}, Rewritten: 3}, nil
}

type fakeClassifier struct{ lon, lat float64 }

func (f *fakeClassifier) Classify(_ context.Context, lon, lat float64) classify.Result {
	f.lon, f.lat = lon, lat
	return classify.Result{Allowed: true, Type: "Residential Main"}
}

func newServer(rep *fakeReports, cls *fakeClassifier) http.Handler {
	r := chi.NewRouter()
	New(rep, cls, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q", rr.Body.String())
	}
	return rr, out
}

const square = `{"type":"Polygon","coordinates":[[[77.5,12.9],[77.7,12.9],[77.7,13.0],[77.5,13.0],[77.5,12.9]]]}`

func TestCreateReport(t *testing.T) {
	rep := &fakeReports{}
	h := newServer(rep, &fakeClassifier{})

	body := fmt.Sprintf(`{"latitude":12.97,"longitude":77.59,"zoom":14,"propertyType":"Residential","isochronePolygons":[%q]}`, square)
	rr, out := do(t, h, http.MethodPost, "/v1/reports", body)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("code=%d want 202 body=%s", rr.Code, rr.Body.String())
	}
	if out["status"] != "success" || out["reportId"] != "rep-1" || out["reportComplete"] != false {
		t.Fatalf("body=%v", out)
	}
	if out["latitude"] != 12.97 || out["longitude"] != 77.59 {
		t.Fatalf("coordinates=%v,%v", out["latitude"], out["longitude"])
	}
	if rep.lastReq.Zoom != 14 || len(rep.lastReq.Isochrones) != 1 {
		t.Fatalf("request=%+v", rep.lastReq)
	}
	if _, ok := rep.lastReq.Isochrones[0].(orb.Polygon); !ok {
		t.Fatalf("isochrone type=%T", rep.lastReq.Isochrones[0])
	}
}

func TestCreateReport_BadInputNeverReachesService(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"latitude":`},
		{"empty body", ``},
		{"missing point", `{"propertyType":"Residential","zoom":14}`},
		{"latitude out of range", `{"latitude":91,"longitude":0,"zoom":14,"propertyType":"Residential"}`},
		{"missing zoom", `{"latitude":1,"longitude":1,"propertyType":"Residential"}`},
		{"zoom out of range", `{"latitude":1,"longitude":1,"zoom":30,"propertyType":"Residential"}`},
		{"missing property type", `{"latitude":1,"longitude":1,"zoom":14}`},
		{"unparsable polygon", `{"latitude":1,"longitude":1,"zoom":14,"propertyType":"R","isochronePolygons":["{nope"]}`},
		{"point is not a polygon", `{"latitude":1,"longitude":1,"zoom":14,"propertyType":"R","isochronePolygons":["{\"type\":\"Point\",\"coordinates\":[1,1]}"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &fakeReports{}
			rr, out := do(t, newServer(rep, &fakeClassifier{}), http.MethodPost, "/v1/reports", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("code=%d want 400", rr.Code)
			}
			if out["status"] != "failed" || out["code"] != "INVALID_INPUT" {
				t.Fatalf("body=%v", out)
			}
			if rep.calls != 0 {
				t.Fatalf("service called %d times", rep.calls)
			}
		})
	}
}

func TestCreateReport_ExplicitZoomZero(t *testing.T) {
	rep := &fakeReports{}
	rr, _ := do(t, newServer(rep, &fakeClassifier{}), http.MethodPost, "/v1/reports",
		`{"latitude":1,"longitude":1,"zoom":0,"propertyType":"Residential"}`)
	if rr.Code != http.StatusAccepted || rep.calls != 1 || rep.lastReq.Zoom != 0 {
		t.Fatalf("code=%d calls=%d zoom=%d", rr.Code, rep.calls, rep.lastReq.Zoom)
	}
}

func TestCreateReport_FeatureWrappedPolygon(t *testing.T) {
	g, err := parsePolygon(`{"type":"Feature","properties":{},"geometry":` + square + `}`)
	if err != nil {
		t.Fatalf("parsePolygon: %v", err)
	}
	if _, ok := g.(orb.Polygon); !ok {
		t.Fatalf("type=%T", g)
	}
}

func TestCreateReport_UnknownPropertyType(t *testing.T) {
	rep := &fakeReports{err: fmt.Errorf("manifest %q: %w", "Castle", report.ErrNotFound)}
	rr, out := do(t, newServer(rep, &fakeClassifier{}), http.MethodPost, "/v1/reports",
		`{"latitude":1,"longitude":1,"zoom":14,"propertyType":"Castle"}`)
	if rr.Code != http.StatusNotFound || out["status"] != "failed" {
		t.Fatalf("code=%d body=%v", rr.Code, out)
	}
}

func TestCreateReport_ByIDAndStatus(t *testing.T) {
	rep := &fakeReports{}
	h := newServer(rep, &fakeClassifier{})

	rr, _ := do(t, h, http.MethodPost, "/v1/reports", `{"reportId":"rep-1"}`)
	if rr.Code != http.StatusOK || rep.lastReq.ReportID != "rep-1" {
		t.Fatalf("code=%d req=%+v", rr.Code, rep.lastReq)
	}

	rr, out := do(t, h, http.MethodGet, "/v1/reports/rep-1", "")
	if rr.Code != http.StatusOK || out["reportComplete"] != true || out["latitude"] != 1.0 {
		t.Fatalf("code=%d body=%v", rr.Code, out)
	}

	rr, _ = do(t, h, http.MethodGet, "/v1/reports/other", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("code=%d want 404", rr.Code)
	}
}

func TestInternalErrorsAre500(t *testing.T) {
	rep := &fakeReports{err: errors.New("mongo down")}
	rr, out := do(t, newServer(rep, &fakeClassifier{}), http.MethodPost, "/v1/reports",
		`{"latitude":1,"longitude":1,"zoom":14,"propertyType":"Residential"}`)
	if rr.Code != http.StatusInternalServerError || out["code"] != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("code=%d body=%v", rr.Code, out)
	}
}

func TestPropertyType(t *testing.T) {
	cls := &fakeClassifier{}
	h := newServer(&fakeReports{}, cls)

	rr, out := do(t, h, http.MethodGet, "/v1/property-type?lat=12.97&lon=77.59", "")
	if rr.Code != http.StatusOK || out["allowed"] != true || out["type"] != "Residential Main" {
		t.Fatalf("code=%d body=%v", rr.Code, out)
	}
	if cls.lat != 12.97 || cls.lon != 77.59 {
		t.Fatalf("classified at lat=%v lon=%v", cls.lat, cls.lon)
	}

	rr, _ = do(t, h, http.MethodPost, "/v1/property-type", `{"latitude":10,"longitude":20}`)
	if rr.Code != http.StatusOK || cls.lat != 10 || cls.lon != 20 {
		t.Fatalf("code=%d lat=%v lon=%v", rr.Code, cls.lat, cls.lon)
	}

	rr, _ = do(t, h, http.MethodGet, "/v1/property-type?lat=abc&lon=1", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d want 400", rr.Code)
	}
}

func TestReportsNear(t *testing.T) {
	rep := &fakeReports{nearby: []model.Report{{
		ID: "r1", PropertyType: "Residential", H3Cell: "89618928cb3ffff",
		Location: model.NewGeoPoint(model.Coordinate{Lat: 12.97, Lon: 77.59}),
	}}}
	rr, out := do(t, newServer(rep, &fakeClassifier{}), http.MethodGet, "/v1/reports?lat=12.97&lon=77.59", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	list, ok := out["reports"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("reports=%v", out["reports"])
	}
	first := list[0].(map[string]any)
	if first["reportId"] != "r1" || first["latitude"] != 12.97 || first["longitude"] != 77.59 {
		t.Fatalf("report=%v", first)
	}
	if rep.near != (model.Coordinate{Lat: 12.97, Lon: 77.59}) {
		t.Fatalf("near=%+v", rep.near)
	}
}

func TestRefreshManifest(t *testing.T) {
	rep := &fakeReports{}
	h := newServer(rep, &fakeClassifier{})

	rr, out := do(t, h, http.MethodPost, "/v1/manifests/Residential/refresh", "")
	if rr.Code != http.StatusOK || out["rewritten"] != 3.0 {
		t.Fatalf("code=%d body=%v", rr.Code, out)
	}
	rr, _ = do(t, h, http.MethodPost, "/v1/manifests/Castle/refresh", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("code=%d want 404", rr.Code)
	}
}
