package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/export"
	"github.com/sells-group/poi-interlink/internal/geospatial"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/overpass"
	"github.com/sells-group/poi-interlink/internal/store"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Link a POI dataset to OSM features",
	Long: `Runs the whole interlinking pipeline: partition the dataset, acquire OSM
features per tile, score the k nearest candidates of every POI and write the
accepted pairs, the unmatched POI ids and the feature table.

A tile that still fails after the configured attempts aborts the run and no
output is written, unless --skip-failed-tiles is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("dataset")
		skip, _ := cmd.Flags().GetBool("skip-failed-tiles")
		if format, _ := cmd.Flags().GetString("format"); format != "" {
			cfg.Output.Format = format
		}
		if dir, _ := cmd.Flags().GetString("out-dir"); dir != "" {
			cfg.Output.Dir = dir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		res, err := evaluate(cmd.Context(), path, skip)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "run %s: %d pois, %d tiles (%d failed), %d features, %d matched, %d unmatched\n",
			res.Run.ID, res.Run.POIs, res.Run.Tiles, res.Run.FailedTiles,
			res.Run.Features, res.Run.Matched, res.Run.Unmatched)
		for _, f := range res.Files {
			_, _ = fmt.Fprintln(out, f)
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().String("dataset", "", "primary POI dataset (csv, xlsx or shp)")
	evalCmd.Flags().String("format", "", "pairs file format: csv or xlsx (default output.format)")
	evalCmd.Flags().String("out-dir", "", "output directory (default output.dir)")
	evalCmd.Flags().Bool("skip-failed-tiles", false, "record failed tiles and continue instead of aborting")
	_ = evalCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(evalCmd)
}

// evalResult is the outcome of one interlinking run.
type evalResult struct {
	Run     *model.Run
	Link    *model.LinkResult
	Acquire *overpass.AcquireResult
	Files   []string
}

// evaluate runs the pipeline on the dataset at path. When a store is
// configured the run, its pairs, unmatched ids and failed tiles are persisted.
func evaluate(ctx context.Context, path string, skipFailed bool) (*evalResult, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	run := &model.Run{ID: uuid.NewString(), Dataset: path, Status: model.RunStatusQueued}
	if st != nil {
		if run, err = st.CreateRun(ctx, path); err != nil {
			return nil, err
		}
	}
	log := zap.L().With(zap.String("component", "eval"), zap.String("run_id", run.ID))

	res, err := runStages(ctx, st, run, path, skipFailed)
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		log.Error("run failed", zap.Error(err))
	} else {
		run.Status = model.RunStatusComplete
		log.Info("run complete",
			zap.Int("matched", run.Matched),
			zap.Int("unmatched", run.Unmatched),
		)
	}

	if st != nil {
		if ferr := st.FinishRun(ctx, run); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, err
	}
	res.Run = run
	return res, nil
}

func runStages(ctx context.Context, st store.Store, run *model.Run, path string, skipFailed bool) (*evalResult, error) {
	setStatus := func(s model.RunStatus) error {
		run.Status = s
		if st == nil {
			return nil
		}
		return st.UpdateRunStatus(ctx, run.ID, s)
	}

	pois, err := loadPOIs(ctx, path)
	if err != nil {
		return nil, err
	}
	run.POIs = len(pois)

	tiles, err := partitionPOIs(pois)
	if err != nil {
		return nil, err
	}
	run.Tiles = len(tiles)
	if err := setStatus(model.RunStatusPartitioned); err != nil {
		return nil, err
	}

	// Lexicon and metric errors surface before any download.
	linker, err := newLinker()
	if err != nil {
		return nil, err
	}

	if err := setStatus(model.RunStatusAcquiring); err != nil {
		return nil, err
	}
	acq, err := newAcquirer(run.ID, skipFailed).Acquire(ctx, tiles)
	if err != nil {
		return nil, err
	}
	run.FailedTiles = len(acq.FailedTiles)
	run.Features = len(acq.Features)
	if st != nil && len(acq.FailedTiles) > 0 {
		if err := st.SaveFailedTiles(ctx, acq.FailedTiles); err != nil {
			return nil, err
		}
	}

	table, err := geospatial.ProjectFeatures(projector, acq.Features, cfg.CRS.Target)
	if err != nil {
		return nil, err
	}

	if err := setStatus(model.RunStatusMatching); err != nil {
		return nil, err
	}
	link, err := linker.Link(ctx, pois, table)
	if err != nil {
		return nil, eris.Wrap(err, "eval: link")
	}
	run.Matched = len(link.Pairs)
	run.Unmatched = len(link.Unmatched)

	res := &evalResult{Link: link, Acquire: acq}
	w := export.NewWriter(cfg.Output)
	for _, write := range []func() (string, error){
		func() (string, error) { return w.WritePairs(link.Pairs) },
		func() (string, error) { return w.WriteUnmatched(link.Unmatched) },
		func() (string, error) { return w.WriteFeatures(table) },
	} {
		file, err := write()
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, file)
	}

	if st != nil {
		if _, err := st.SavePairs(ctx, run.ID, link.Pairs); err != nil {
			return nil, err
		}
		if err := st.SaveUnmatched(ctx, run.ID, link.Unmatched); err != nil {
			return nil, err
		}
	}
	return res, nil
}
