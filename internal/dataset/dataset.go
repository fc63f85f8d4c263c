// Package dataset loads the primary POI dataset from CSV, XLSX or point
// shapefiles.
package dataset

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/config"
	"github.com/sells-group/poi-interlink/internal/model"
)

// Columns names the dataset columns holding each POI attribute.
type Columns struct {
	ID       string
	Name     string
	Theme    string
	Class    string
	Subclass string
	X        string
	Y        string
}

// Options configures loading.
type Options struct {
	// Format is csv, xlsx, shp or auto (by file extension).
	Format  string
	Sheet   string
	Columns Columns
	CRS     int
	// SkipBadCoords drops rows with unparsable coordinates instead of failing.
	SkipBadCoords bool
}

// FromConfig builds loader options from the dataset and CRS configuration.
func FromConfig(cfg config.DatasetConfig, crs int) Options {
	return Options{
		Format: cfg.Format,
		Sheet:  cfg.Sheet,
		Columns: Columns{
			ID:       cfg.IDColumn,
			Name:     cfg.NameColumn,
			Theme:    cfg.ThemeColumn,
			Class:    cfg.ClassColumn,
			Subclass: cfg.SubclassCol,
			X:        cfg.XColumn,
			Y:        cfg.YColumn,
		},
		CRS:           crs,
		SkipBadCoords: cfg.SkipBadCoords,
	}
}

// Load reads the dataset at path.
func Load(ctx context.Context, path string, opts Options) ([]model.SourcePOI, error) {
	format := opts.Format
	if format == "" || format == "auto" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	var (
		pois []model.SourcePOI
		err  error
	)
	switch format {
	case "csv", "txt":
		pois, err = LoadCSV(ctx, path, opts)
	case "xlsx":
		pois, err = LoadXLSX(path, opts)
	case "shp":
		pois, err = LoadShapefile(path, opts)
	default:
		return nil, eris.Errorf("dataset: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("dataset: loaded",
		zap.String("component", "dataset"),
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("pois", len(pois)),
	)
	return pois, nil
}

// builder turns attribute rows into POIs, keeping the first row of every id.
type builder struct {
	opts   Options
	colIdx map[string]int
	seen   map[string]bool
	pois   []model.SourcePOI
	row    int
}

func newBuilder(header []string, opts Options) (*builder, error) {
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}
	return newBuilderIdx(colIdx, opts, true)
}

func newBuilderIdx(colIdx map[string]int, opts Options, needXY bool) (*builder, error) {
	required := []string{opts.Columns.ID, opts.Columns.Name}
	if needXY {
		required = append(required, opts.Columns.X, opts.Columns.Y)
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("dataset: missing required column %q", col)
		}
	}
	return &builder{opts: opts, colIdx: colIdx, seen: make(map[string]bool)}, nil
}

func (b *builder) col(row []string, name string) string {
	i, ok := b.colIdx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// addRow parses x/y from the row's coordinate columns.
func (b *builder) addRow(row []string) error {
	x, errX := parseCoord(b.col(row, b.opts.Columns.X))
	y, errY := parseCoord(b.col(row, b.opts.Columns.Y))
	if errX != nil || errY != nil {
		defer func() { b.row++ }()
		if b.opts.SkipBadCoords {
			zap.L().Warn("dataset: skipping row with invalid coordinates",
				zap.Int("row", b.row),
				zap.String("id", b.col(row, b.opts.Columns.ID)),
			)
			return nil
		}
		return eris.Errorf("dataset: row %d: invalid coordinates (%q, %q)",
			b.row, b.col(row, b.opts.Columns.X), b.col(row, b.opts.Columns.Y))
	}
	b.add(row, orb.Point{x, y})
	return nil
}

func (b *builder) add(row []string, loc orb.Point) {
	defer func() { b.row++ }()

	id := b.col(row, b.opts.Columns.ID)
	if id == "" {
		zap.L().Warn("dataset: skipping row without id", zap.Int("row", b.row))
		return
	}
	if b.seen[id] {
		zap.L().Warn("dataset: skipping duplicate id", zap.Int("row", b.row), zap.String("id", id))
		return
	}
	b.seen[id] = true

	b.pois = append(b.pois, model.SourcePOI{
		Row:  b.row,
		ID:   id,
		Name: b.col(row, b.opts.Columns.Name),
		Category: model.Category{
			Theme:    b.col(row, b.opts.Columns.Theme),
			Class:    b.col(row, b.opts.Columns.Class),
			Subclass: b.col(row, b.opts.Columns.Subclass),
		},
		Location: loc,
		CRS:      b.opts.CRS,
	})
}

func parseCoord(s string) (float64, error) {
	if s == "" {
		return 0, eris.New("empty coordinate")
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}
