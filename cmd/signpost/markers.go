package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/sign"
)

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Generate printable markers for the action table",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		size, _ := cmd.Flags().GetInt("size")

		dict, err := detector.LookupDictionary(cfg.Marker.Dictionary)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(out, 0755); err != nil {
			return errors.Wrapf(err, "create %s", out)
		}

		for _, id := range sign.IDs() {
			path := filepath.Join(out, markerFileName(id, sign.Resolve(id)))
			if err := writeMarker(dict, id, size, path); err != nil {
				return err
			}
			pterm.Success.Printf("%s\n", path)
		}
		return nil
	},
}

func init() {
	markersCmd.Flags().String("out", "markers", "output directory")
	markersCmd.Flags().Int("size", 400, "marker side in pixels")
}

func writeMarker(dict gocv.ArucoDictionaryCode, id, size int, path string) error {
	img, err := detector.GenerateMarker(dict, id, size, size/10)
	if err != nil {
		return err
	}
	defer img.Close()

	if !gocv.IMWrite(path, img) {
		return errors.Newf("write %s", path)
	}
	return nil
}

// markerFileName gives e.g. "05_stop.png".
func markerFileName(id int, action sign.Action) string {
	slug := strings.ReplaceAll(strings.ToLower(action.String()), " ", "_")
	return fmt.Sprintf("%02d_%s.png", id, slug)
}
