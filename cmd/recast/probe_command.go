package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recast/internal/config"
	"recast/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <input>",
		Short: "Inspect a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			result, err := ffprobe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(table.Row{"Property", "Value"}, probeRows(result)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw probe result as JSON")
	return cmd
}

// probeRows flattens the probe result into display rows, skipping streams the
// container does not carry.
func probeRows(result ffprobe.Result) []table.Row {
	rows := []table.Row{
		{"File", result.Format.Filename},
		{"Container", result.Format.FormatName},
		{"Duration", formatDurationMs(result.DurationMs())},
		{"Size", formatBytesCell(result.SizeBytes())},
	}
	if rate := result.BitRate(); rate > 0 {
		rows = append(rows, table.Row{"Bitrate", fmt.Sprintf("%d kb/s", rate/1000)})
	}
	if result.HasVideo() {
		video := fmt.Sprintf("%s %dx%d", result.VideoCodec(), result.Width(), result.Height())
		if fps := result.FrameRate(); fps > 0 {
			video = fmt.Sprintf("%s @ %.2f fps", video, fps)
		}
		rows = append(rows, table.Row{"Video", video})
	}
	if result.HasAudio() {
		rows = append(rows, table.Row{"Audio", result.AudioCodec()})
	}
	rows = append(rows, table.Row{"Streams", result.Format.NBStreams})
	return rows
}
