package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ayusman/signpost/internal/app"
	"github.com/ayusman/signpost/internal/sign"
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Print focal length calibration guidance",
	RunE: func(cmd *cobra.Command, args []string) error {
		app.PrintGuidance(cfg.Calibration.Initial)

		data := pterm.TableData{{"ID", "Action"}}
		for _, id := range sign.IDs() {
			data = append(data, []string{fmt.Sprint(id), sign.Resolve(id).String()})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}

		pterm.Println()
		pterm.Printf("Markers are accepted between %s with a %.1fcm tag.\n", cfg.Range(), cfg.Marker.TagWidthCm)
		pterm.Println(pterm.Gray("Keys: ESC quit, S save steps, UP/W and DOWN/D adjust focal, R reset, C guidance"))
		return nil
	},
}
