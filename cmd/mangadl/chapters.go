package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangadl/pkg/app/styles"
	"github.com/kerbaras/mangadl/pkg/services"
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters <manga-url>",
	Short: "List the chapters of a manga",
	Long:  "Fetch a manga page and show its chapters with the numbers used by 'download --chapters'",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		controller := services.NewMangaController(settings, services.WithLogger(logger))

		title, chapters, err := controller.Discover(context.Background(), args[0])
		cobra.CheckErr(err)

		if len(chapters) == 0 {
			fmt.Println("❌ No chapters found.")
			return
		}

		rows := make([][]string, len(chapters))
		for i, c := range chapters {
			rows[i] = []string{strconv.Itoa(i + 1), truncateString(c.Name, 40), c.URL}
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers("#", "Chapter", "URL").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				style := lipgloss.NewStyle().Padding(0, 1)
				if row == table.HeaderRow {
					return style.Bold(true).Foreground(styles.Primary)
				}
				if col == 0 {
					return style.Foreground(styles.Muted).Align(lipgloss.Right)
				}
				return style
			})

		fmt.Printf("\n📚 %s (%d chapters)\n\n", title, len(chapters))
		fmt.Println(t)
	},
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
