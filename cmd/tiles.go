package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Print the acquisition tiles of a dataset as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("dataset")

		pois, err := loadPOIs(cmd.Context(), path)
		if err != nil {
			return err
		}
		tiles, err := partitionPOIs(pois)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tiles)
	},
}

func init() {
	tilesCmd.Flags().String("dataset", "", "primary POI dataset (csv, xlsx or shp)")
	_ = tilesCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(tilesCmd)
}
