// Package export writes linking results as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-interlink/internal/config"
	"github.com/sells-group/poi-interlink/internal/fetcher"
	"github.com/sells-group/poi-interlink/internal/geospatial"
	"github.com/sells-group/poi-interlink/internal/model"
)

// PairColumns is the header of the pairs file.
var PairColumns = []string{
	"geodata_id",
	"geodata_name",
	"geodata_tags",
	"geodata_geom",
	"osm_id",
	"osm_name",
	"osm_tags",
	"osm_geom",
	"tot_score",
	"name_dist",
	"tag_dist",
	"spatial_dist (meters)",
	"status",
}

// UnmatchedColumns is the header of the unmatched ids file.
var UnmatchedColumns = []string{"geodata_id"}

// FeatureColumns is the header of the feature table file.
var FeatureColumns = []string{"id", "kind", "name", "tags", "geometry"}

// Writer writes result files into one directory.
type Writer struct {
	cfg config.OutputConfig
}

// NewWriter creates a writer for cfg. The directory is created on first write.
func NewWriter(cfg config.OutputConfig) *Writer {
	if cfg.Format == "" {
		cfg.Format = "csv"
	}
	return &Writer{cfg: cfg}
}

// WritePairs writes the accepted pairs and returns the file path.
func (w *Writer) WritePairs(pairs []model.CandidatePairRecord) (string, error) {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		row, err := pairRow(p)
		if err != nil {
			return "", err
		}
		rows = append(rows, row)
	}
	return w.write(w.cfg.PairsFile, w.cfg.Format, PairColumns, rows)
}

// WriteUnmatched writes the ids of POIs without a match. It is always CSV.
func (w *Writer) WriteUnmatched(ids []string) (string, error) {
	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{id}
	}
	return w.write(w.cfg.UnmatchedFile, "csv", UnmatchedColumns, rows)
}

// WriteFeatures writes the feature table ordered by feature id.
func (w *Writer) WriteFeatures(table model.FeatureTable) (string, error) {
	sorted := table.SortedByID()
	rows := make([][]string, 0, len(sorted))
	for _, f := range sorted {
		names, err := jsonString(nonNil(f.Names))
		if err != nil {
			return "", err
		}
		tags, err := jsonString(f.Tags.Map())
		if err != nil {
			return "", err
		}
		rows = append(rows, []string{
			f.ID.String(),
			string(f.Kind),
			names,
			tags,
			geospatial.PointWKT(f.Location),
		})
	}
	return w.write(w.cfg.FeaturesFile, "csv", FeatureColumns, rows)
}

func (w *Writer) write(name, format string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create output dir")
	}
	path := filepath.Join(w.cfg.Dir, name+"."+format)

	switch format {
	case "csv":
		if err := writeCSV(path, header, rows); err != nil {
			return "", err
		}
	case "xlsx":
		if err := fetcher.WriteXLSX(path, name, header, rows); err != nil {
			return "", eris.Wrap(err, "export: write xlsx")
		}
	default:
		return "", eris.Errorf("export: unsupported format %q", format)
	}
	return path, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close() //nolint:errcheck

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrap(err, "export: write rows")
	}
	return nil
}

func pairRow(p model.CandidatePairRecord) ([]string, error) {
	names, err := jsonString(nonNil(p.FeatureNames))
	if err != nil {
		return nil, err
	}
	tags, err := jsonString(p.FeatureTags)
	if err != nil {
		return nil, err
	}
	return []string{
		p.SourceID,
		p.SourceName,
		p.SourceCategory.String(),
		geospatial.PointWKT(p.SourceGeom),
		p.FeatureID,
		names,
		tags,
		geospatial.PointWKT(p.FeatureGeom),
		formatFloat(p.TotalScore),
		strconv.Itoa(p.NameScore),
		strconv.Itoa(p.TagScore),
		formatFloat(p.Distance),
		statusString(p.Status),
	}, nil
}

func statusString(ok bool) string {
	if ok {
		return "True"
	}
	return "False"
}

func jsonString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "export: encode json")
	}
	return string(data), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
