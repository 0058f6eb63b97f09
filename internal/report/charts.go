package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lagcomp/internal/lagcomp"
)

// RenderTraces writes an HTML page summarising recs: integration effort
// per compensation and the step sizes taken inside each one.
func RenderTraces(w io.Writer, title string, recs []lagcomp.TraceRecord) error {
	if len(recs) == 0 {
		return ErrNoData
	}

	labels := make([]string, len(recs))
	steps := make([]opts.LineData, len(recs))
	passes := make([]opts.LineData, len(recs))
	for i, rec := range recs {
		labels[i] = fmt.Sprintf("%s %s %.3f", rec.Entity, rec.Direction, rec.Begin)
		steps[i] = opts.LineData{Value: rec.Result.Steps}
		passes[i] = opts.LineData{Value: rec.Result.Passes}
	}

	effort := charts.NewLine()
	effort.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("compensations=%d", len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	effort.SetXAxis(labels).
		AddSeries("steps", steps).
		AddSeries("derivative passes", passes)

	sizes := charts.NewScatter()
	sizes.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Step sizes", Subtitle: "simulation time vs step length (s)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)", NameLocation: "middle", NameGap: 25, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "h (s)", NameLocation: "middle", NameGap: 40}),
	)
	pts := make([]opts.ScatterData, 0)
	for _, rec := range recs {
		for _, s := range rec.Steps {
			pts = append(pts, opts.ScatterData{Value: []interface{}{s.Time, s.StepSize}})
		}
	}
	sizes.AddSeries("step size", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(effort, sizes)
	return page.Render(w)
}
