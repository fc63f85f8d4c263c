package dataset

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-interlink/internal/fetcher"
	"github.com/sells-group/poi-interlink/internal/model"
)

// LoadXLSX reads the configured sheet (the first one by default); the first
// row is the header.
func LoadXLSX(path string, opts Options) ([]model.SourcePOI, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.Sheet})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read xlsx")
	}
	if len(rows) == 0 {
		return nil, eris.New("dataset: xlsx has no header row")
	}

	b, err := newBuilder(rows[0], opts)
	if err != nil {
		return nil, err
	}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		if err := b.addRow(row); err != nil {
			return nil, err
		}
	}
	return b.pois, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
