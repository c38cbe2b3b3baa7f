package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/livrya/ambience/internal/wav"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print the header of a generated WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		buf := make([]byte, wav.HeaderSize)
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read header: %w", wav.ErrShortHeader)
		}
		h, err := wav.ReadHeader(buf)
		if err != nil {
			return err
		}

		format := h.Format()
		seconds := 0.0
		if rate := format.ByteRate(); rate > 0 {
			seconds = float64(h.DataSize) / float64(rate)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sample rate  %d Hz\n", format.SampleRate)
		fmt.Fprintf(out, "channels     %d\n", format.Channels)
		fmt.Fprintf(out, "bits/sample  %d\n", format.BitsPerSample)
		fmt.Fprintf(out, "data bytes   %d\n", h.DataSize)
		fmt.Fprintf(out, "duration     %.2fs\n", seconds)
		return nil
	},
}
