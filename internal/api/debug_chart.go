package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// debugHeatmapChart renders the occupancy grid as a coloured scatter of
// cell centres (HTML, ECharts). This is a debugging-only endpoint to
// eyeball the accumulated footprint without the product UI.
func (s *Server) debugHeatmapChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.session.GridSnapshot()
	if snap.MaxWeight == 0 {
		s.writeJSONError(w, http.StatusNotFound, "occupancy grid is empty")
		return
	}

	data := make([]opts.ScatterData, 0, len(snap.Weights))
	for i, weight := range snap.Weights {
		if weight == 0 {
			continue
		}
		cx := i % snap.CellsX
		cy := i / snap.CellsX
		x := (float64(cx) + 0.5) * snap.CellSizeMeters
		y := (float64(cy) + 0.5) * snap.CellSizeMeters
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, weight}})
	}

	model := s.session.Court()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Court Occupancy", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Court Occupancy Grid",
			Subtitle: fmt.Sprintf("court=%s session=%s samples=%d", model.Type, s.session.ID(), snap.Samples),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: float32(model.LengthMeters), Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: float32(model.WidthMeters), Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(snap.MaxWeight),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("occupancy", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
