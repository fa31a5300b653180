// Package render turns per-camera bucket sequences into a multi-panel
// area chart: a Vega-Lite document, one horizontal panel per camera,
// stacked vertically on a shared time axis.
package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/fps-visualizer/backend/internal/models"
)

//go:embed chart.html.tmpl
var templates embed.FS

// Defaults for panel geometry; configurable globally, not per camera.
const (
	DefaultWidth  = 1200
	DefaultHeight = 60
)

// Options controls chart geometry and labeling.
type Options struct {
	Width  int
	Height int
	Title  string
}

// RenderError reports a failure to build or write the chart. It is fatal
// for the run; aggregated data is not persisted separately.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render failed: %v", e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// row is one data point in the chart's flattened table, matching the
// field names the encoding refers to.
type row struct {
	Datetime string  `json:"datetime"`
	FPS      float64 `json:"fps"`
	Serial   string  `json:"serial"`
}

type mark struct {
	Type    string  `json:"type"`
	Line    bool    `json:"line"`
	Opacity float64 `json:"opacity"`
}

type field struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type encoding struct {
	X   field `json:"x"`
	Y   field `json:"y"`
	Row field `json:"row"`
}

type dataValues struct {
	Values []row `json:"values"`
}

// spec is the Vega-Lite v5 document: an area mark with a drawn boundary
// line at partial opacity, faceted into one row per camera serial.
type spec struct {
	Schema   string     `json:"$schema"`
	Title    string     `json:"title,omitempty"`
	Data     dataValues `json:"data"`
	Mark     mark       `json:"mark"`
	Encoding encoding   `json:"encoding"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
}

// BuildSpec assembles the chart document from panels. Panel order becomes
// facet order.
func BuildSpec(panels []models.Panel, opts Options) *spec {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	rows := make([]row, 0)
	for _, p := range panels {
		for _, b := range p.Buckets {
			rows = append(rows, row{
				Datetime: b.BucketStart.UTC().Format(time.RFC3339),
				FPS:      b.MeanFPS,
				Serial:   p.CameraID,
			})
		}
	}

	return &spec{
		Schema: "https://vega.github.io/schema/vega-lite/v5.json",
		Title:  opts.Title,
		Data:   dataValues{Values: rows},
		Mark:   mark{Type: "area", Line: true, Opacity: 0.3},
		Encoding: encoding{
			X:   field{Field: "datetime", Type: "temporal", Title: "datetime"},
			Y:   field{Field: "fps", Type: "quantitative", Title: "fps"},
			Row: field{Field: "serial", Type: "nominal"},
		},
		Width:  opts.Width,
		Height: opts.Height,
	}
}

// SpecJSON returns the chart document as JSON, for callers that embed the
// spec themselves (the server's chart endpoint).
func SpecJSON(panels []models.Panel, opts Options) ([]byte, error) {
	data, err := json.Marshal(BuildSpec(panels, opts))
	if err != nil {
		return nil, &RenderError{Err: err}
	}
	return data, nil
}

// WriteHTML writes a self-contained HTML page rendering the chart via
// vega-embed.
func WriteHTML(w io.Writer, panels []models.Panel, opts Options) error {
	specData, err := SpecJSON(panels, opts)
	if err != nil {
		return err
	}

	tmpl, err := template.ParseFS(templates, "chart.html.tmpl")
	if err != nil {
		return &RenderError{Err: err}
	}

	page := struct {
		Title string
		Spec  template.JS
	}{
		Title: opts.Title,
		Spec:  template.JS(specData),
	}
	if page.Title == "" {
		page.Title = "Camera FPS"
	}

	if err := tmpl.Execute(w, page); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}

// WriteHTMLFile renders the chart to a file.
func WriteHTMLFile(path string, panels []models.Panel, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return &RenderError{Err: err}
	}

	if err := WriteHTML(f, panels, opts); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	if err := f.Close(); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}
