package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
	"github.com/timvw/shapeqa/internal/scene"
	"github.com/timvw/shapeqa/internal/vision"
)

var flagDetectJSON bool

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Run the color/shape detector on one image",
	Long: `Detect colored circles, squares and triangles in an image and print the
scene context the classic agent would send to the model.

With --json the detected objects are printed as a JSON array instead.
Detector thresholds come from the config file (detector: section).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := zap.NewNop()
		if flagVerbose {
			if log, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}

		objects, err := vision.NewDetector(cfg.Detector, log).DetectFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagDetectJSON {
			if objects == nil {
				objects = []model.DetectedObject{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(objects)
		}
		fmt.Fprintln(out, scene.New(objects).Text)
		return nil
	},
}

func init() {
	detectCmd.Flags().BoolVar(&flagDetectJSON, "json", false, "print detected objects as JSON")
	rootCmd.AddCommand(detectCmd)
}
