package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"nightreel/services"
	"nightreel/timing"
	"nightreel/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync <job.json> <cues.vtt|cues.srt>",
	Short: "Print the scene timings a narration track would produce",
	Long: `Match each scene's text against the narration cues and print the start,
end and duration assigned to every scene, without rendering anything.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

var syncJSON bool

func init() {
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the synchronized scenes as JSON")
}

func runSync(cmd *cobra.Command, args []string) error {
	job, err := services.LoadJobFile(args[0])
	if err != nil {
		return err
	}
	cues, err := timing.ParseCueFile(args[1])
	if err != nil {
		return err
	}

	scenes, report := timing.Synchronize(job.Scenes, cues, timing.DefaultOptions())

	if syncJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scenes)
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("%d scenes, %d cues", len(scenes), len(cues))))
	fmt.Println(formatTimings(scenes, report))
	return nil
}

// formatTimings renders one row per scene. Degraded scenes are flagged.
func formatTimings(scenes []types.Scene, report timing.Report) string {
	degraded := make(map[int]bool, len(report.Degraded))
	for _, i := range report.Degraded {
		degraded[i] = true
	}

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top,
		cellStyle.Render(" # "),
		cellStyle.Render("start       "),
		cellStyle.Render("end         "),
		cellStyle.Render("dur   "),
		"text",
	)}

	for i, s := range scenes {
		text := s.Text
		if r := []rune(text); len(r) > 48 {
			text = string(r[:45]) + "..."
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			cellStyle.Render(fmt.Sprintf("%3d", i)),
			cellStyle.Render(timing.FormatTimestamp(s.Start)),
			cellStyle.Render(timing.FormatTimestamp(s.End)),
			cellStyle.Render(fmt.Sprintf("%6.2f", s.Duration)),
			text,
		)
		if degraded[i] {
			row = WarningStyle.Render(row + "  (fallback)")
		}
		rows = append(rows, row)
	}

	summary := SuccessStyle.Render(fmt.Sprintf("total %.2fs, %d matched", types.TotalDuration(scenes), report.Matched))
	if err := report.Err(); err != nil {
		summary += "\n" + WarningStyle.Render(err.Error())
	}
	rows = append(rows, "", summary)
	return strings.Join(rows, "\n")
}
