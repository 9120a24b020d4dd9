package cmd

import (
	"fmt"
	"net/url"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangadl/pkg/data"
)

var listCmd = &cobra.Command{
	Use:   "list [manga-url]",
	Short: "List the manga in your library",
	Long:  "Display downloaded manga, or the chapters of one manga, in a formatted table",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := data.NewDuckDBRepository(settings.DatabasePath)
		cobra.CheckErr(err)
		defer repo.Close()

		if len(args) == 1 {
			listChapters(repo, args[0])
			return
		}

		mangas, err := repo.ListMangas()
		cobra.CheckErr(err)

		if len(mangas) == 0 {
			fmt.Println("📚 No manga in library. Use 'mangadl download <url>' to get started.")
			return
		}

		columns := []table.Column{
			{Title: "Name", Width: 40},
			{Title: "Source", Width: 16},
			{Title: "Status", Width: 12},
			{Title: "Chapters", Width: 10},
			{Title: "Downloaded", Width: 12},
		}

		rows := []table.Row{}
		for _, manga := range mangas {
			_, total, downloaded, err := repo.GetMangaWithChapterCount(manga.ID)
			if err != nil {
				logger.Warn("failed to count chapters", "manga", manga.Name, "err", err)
			}
			status := manga.Status
			if status == "" {
				status = "ready"
			}

			rows = append(rows, table.Row{
				truncateString(manga.Name, 38),
				sourceHost(manga.SourceURL),
				status,
				fmt.Sprintf("%d", total),
				fmt.Sprintf("%d", downloaded),
			})
		}

		fmt.Printf("\n📚 Library (%d manga)\n\n", len(mangas))
		fmt.Println(renderTable(columns, rows))
	},
}

func listChapters(repo *data.Repository, sourceURL string) {
	manga, err := repo.GetManga(data.MangaID(sourceURL))
	cobra.CheckErr(err)
	if manga == nil {
		cobra.CheckErr(fmt.Errorf("%s is not in the library", sourceURL))
	}

	chapters, err := repo.GetChapters(manga.ID)
	cobra.CheckErr(err)

	columns := []table.Column{
		{Title: "#", Width: 5},
		{Title: "Chapter", Width: 30},
		{Title: "Status", Width: 16},
		{Title: "Images", Width: 9},
		{Title: "File", Width: 50},
	}

	rows := []table.Row{}
	for _, c := range chapters {
		status := c.Status
		if status == "" {
			status = "not downloaded"
		}
		images := ""
		if c.ImagesTotal > 0 {
			images = fmt.Sprintf("%d/%d", c.ImagesOK, c.ImagesTotal)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.Position),
			truncateString(c.Name, 28),
			status,
			images,
			c.FilePath,
		})
	}

	fmt.Printf("\n📚 %s (%d chapters)\n\n", manga.Name, len(chapters))
	fmt.Println(renderTable(columns, rows))
}

func renderTable(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t.View()
}

func sourceHost(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return "-"
	}
	return u.Hostname()
}
