package dataset

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-interlink/internal/fetcher"
	"github.com/sells-group/poi-interlink/internal/model"
)

// LoadCSV reads a delimited file with a header row.
func LoadCSV(ctx context.Context, path string, opts Options) ([]model.SourcePOI, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open csv")
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
	})

	var b *builder
	for row := range rowCh {
		if b == nil {
			if b, err = newBuilder(<-headerCh, opts); err != nil {
				drain(rowCh)
				return nil, err
			}
		}
		if err := b.addRow(row); err != nil {
			drain(rowCh)
			return nil, err
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "dataset: read csv")
	}

	if b == nil {
		select {
		case header := <-headerCh:
			if _, err := newBuilder(header, opts); err != nil {
				return nil, err
			}
		default:
		}
		return nil, nil
	}
	return b.pois, nil
}

func drain(ch <-chan []string) {
	for range ch {
	}
}
