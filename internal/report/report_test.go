package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/integ"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
)

func TestPositionErrorSeries(t *testing.T) {
	t.Parallel()

	s, err := PositionErrorSeries("err", []float64{0, 1},
		[]r3.Vec{{X: 3, Y: 4}, {X: 1}},
		[]r3.Vec{{}, {X: 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, s.X)
	assert.InDelta(t, 5.0, s.Y[0], 1e-12)
	assert.Equal(t, 0.0, s.Y[1])

	_, err = PositionErrorSeries("bad", []float64{0}, nil, nil)
	assert.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "error.png")
	err := SavePNG(path, "Position error", "time (s)", "error (m)",
		Series{Label: "receive", X: []float64{0, 1, 2}, Y: []float64{0, 0.1, 0.05}},
		Series{Label: "send", X: []float64{0, 1, 2}, Y: []float64{0, 0.2, 0.1}},
	)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "expected PNG header")
}

func TestSavePNG_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := SavePNG(filepath.Join(dir, "empty.png"), "t", "x", "y", Series{Label: "none"})
	assert.True(t, errors.Is(err, ErrNoData))

	err = SavePNG(filepath.Join(dir, "bad.png"), "t", "x", "y",
		Series{Label: "ragged", X: []float64{0, 1}, Y: []float64{0}})
	assert.Error(t, err)
}

func TestGenerateColors(t *testing.T) {
	t.Parallel()

	assert.Nil(t, generateColors(0))
	colors := generateColors(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])

	r, g, b := hslToRGB(0, 0, 0.5)
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestRenderTraces(t *testing.T) {
	t.Parallel()

	recs := []lagcomp.TraceRecord{
		{
			Entity:    "truck",
			Direction: lagcomp.DirectionSend,
			Begin:     100,
			End:       100.5,
			Steps: []lagcomp.TraceStep{
				{Step: 1, Time: 100.25, StepSize: 0.25, Passes: 4},
				{Step: 2, Time: 100.5, StepSize: 0.25, Passes: 4},
			},
			Result: integ.Result{Steps: 2, Passes: 8},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderTraces(&buf, "Compensation effort", recs))
	out := buf.String()
	assert.True(t, strings.Contains(out, "Compensation effort"))
	assert.True(t, strings.Contains(out, "derivative passes"))
	assert.True(t, strings.Contains(out, "step size"))

	assert.True(t, errors.Is(RenderTraces(&buf, "empty", nil), ErrNoData))
}
