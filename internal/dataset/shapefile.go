package dataset

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/model"
)

// LoadShapefile reads a point shapefile. Coordinates come from the point
// geometry; attributes from the .dbf columns. Non-point shapes are skipped.
func LoadShapefile(path string, opts Options) ([]model.SourcePOI, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	colIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		colIdx[strings.TrimRight(f.String(), "\x00")] = i
	}

	b, err := newBuilderIdx(colIdx, opts, false)
	if err != nil {
		return nil, err
	}

	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			b.row++
			continue
		}

		row := make([]string, len(fields))
		for i := range fields {
			row[i] = reader.Attribute(i)
		}
		b.add(row, orb.Point{pt.X, pt.Y})
	}

	if skipped > 0 {
		zap.L().Warn("dataset: skipped non-point shapes", zap.Int("count", skipped))
	}
	return b.pois, nil
}
