package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/store"
)

var (
	genType     string
	genDuration float64
	genSpeechID string
	genOut      string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Synthesize one ambient track",
	Long: `Synthesizes a track and stores it under the uploads directory, printing
the stored asset as JSON. With --out the WAV is written to that file instead
("-" for stdout). Unknown types fall back to nature; durations are clamped to
5-120 seconds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if genOut != "" {
			buf := ambient.Generate(genType, genDuration)
			if genOut == "-" {
				_, err := cmd.OutOrStdout().Write(buf)
				return err
			}
			if err := os.WriteFile(genOut, buf, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", genOut, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(buf), genOut)
			return nil
		}

		st := store.New(cfg.UploadsDir, logger)
		duration := genDuration
		res, err := st.GenerateAndStore(cmd.Context(), store.Params{
			SpeechID:        genSpeechID,
			AmbientType:     genType,
			DurationSeconds: &duration,
			Origin:          "cli",
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List supported ambient categories",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range ambient.Categories() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", c, ambient.Describe(c))
		}
	},
}

func init() {
	generateCmd.Flags().StringVarP(&genType, "type", "t", string(ambient.DefaultCategory), "ambient category")
	generateCmd.Flags().Float64VarP(&genDuration, "duration", "d", ambient.DefaultDuration, "duration in seconds")
	generateCmd.Flags().StringVar(&genSpeechID, "speech-id", "", "speech id used in the file name (random when empty)")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "write the WAV to this file instead of the store")
}
