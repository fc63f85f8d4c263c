package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/export"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Acquire the OSM features around a dataset",
	Long:  "Partitions the dataset, downloads the OSM features of every tile from Overpass and writes the deduplicated feature table sorted by id.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("dataset")
		skip, _ := cmd.Flags().GetBool("skip-failed-tiles")
		out, _ := cmd.Flags().GetString("out")

		pois, err := loadPOIs(ctx, path)
		if err != nil {
			return err
		}
		tiles, err := partitionPOIs(pois)
		if err != nil {
			return err
		}

		res, err := newAcquirer(uuid.NewString(), skip).Acquire(ctx, tiles)
		if err != nil {
			return err
		}
		for _, ft := range res.FailedTiles {
			zap.L().Warn("tile skipped",
				zap.Int("tile", ft.TileID),
				zap.Int("attempts", ft.Attempts),
				zap.String("error", ft.Error),
			)
		}

		outCfg := cfg.Output
		if out != "" {
			outCfg.FeaturesFile = out
		}
		file, err := export.NewWriter(outCfg).WriteFeatures(res.Features)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d features from %d tiles (%d failed) written to %s\n",
			len(res.Features), len(res.Tiles), len(res.FailedTiles), file)
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("dataset", "", "primary POI dataset (csv, xlsx or shp)")
	fetchCmd.Flags().String("out", "", "feature table base name, without extension (default output.features_file)")
	fetchCmd.Flags().Bool("skip-failed-tiles", false, "record failed tiles and continue instead of aborting")
	_ = fetchCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(fetchCmd)
}
