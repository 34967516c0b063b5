package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recast/internal/catalog"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "formats",
		Short:       "List supported formats, resolutions, and quality tiers",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			videoRows := make([]table.Row, 0, len(catalog.VideoFormats()))
			for _, format := range catalog.VideoFormats() {
				videoRows = append(videoRows, table.Row{format.DisplayName(), format.Codec})
			}
			fmt.Fprintln(out, "Video formats")
			fmt.Fprintln(out, renderTable(table.Row{"Format", "Codec"}, videoRows))
			fmt.Fprintln(out)

			audioRows := make([]table.Row, 0, len(catalog.AudioFormats()))
			for _, format := range catalog.AudioFormats() {
				audioRows = append(audioRows, table.Row{format.DisplayName(), format.Codec})
			}
			fmt.Fprintln(out, "Audio formats")
			fmt.Fprintln(out, renderTable(table.Row{"Format", "Codec"}, audioRows))
			fmt.Fprintln(out)

			qualityRows := make([]table.Row, 0, len(catalog.QualityLevels()))
			for _, quality := range catalog.QualityLevels() {
				qualityRows = append(qualityRows, table.Row{quality.DisplayName(), quality.CRF})
			}
			fmt.Fprintln(out, "Quality tiers")
			fmt.Fprintln(out, renderTable(table.Row{"Tier", "CRF"}, qualityRows, 2))
			fmt.Fprintln(out)

			labels := make([]string, 0, len(catalog.Resolutions()))
			for _, resolution := range catalog.Resolutions() {
				labels = append(labels, resolution.Label())
			}
			fmt.Fprintf(out, "Resolutions:   %s\n", strings.Join(labels, ", "))

			rates := make([]string, 0, len(catalog.FrameRates()))
			for _, rate := range catalog.FrameRates() {
				if rate == 0 {
					rates = append(rates, "source")
					continue
				}
				rates = append(rates, strconv.Itoa(rate))
			}
			fmt.Fprintf(out, "Frame rates:   %s\n", strings.Join(rates, ", "))
			fmt.Fprintf(out, "Speed presets: %s\n", strings.Join(catalog.SpeedPresets(), ", "))
			return nil
		},
	}
}
