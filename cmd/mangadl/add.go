package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/services"
)

var addCmd = &cobra.Command{
	Use:   "add <manga-url>",
	Short: "Add a manga to your library",
	Long:  "Fetch a manga's chapter list and store it in your library without downloading anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sourceURL := args[0]
		repo, err := data.NewDuckDBRepository(settings.DatabasePath)
		cobra.CheckErr(err)
		defer repo.Close()

		controller := services.NewMangaController(settings, services.WithLogger(logger))

		fmt.Printf("🔍 Fetching %s\n", sourceURL)
		title, chapters, err := controller.Discover(context.Background(), sourceURL)
		cobra.CheckErr(err)

		manga, err := repo.GetManga(data.MangaID(sourceURL))
		cobra.CheckErr(err)
		if manga == nil {
			manga = &data.Manga{ID: data.MangaID(sourceURL), SourceURL: sourceURL}
		}
		manga.Name = string(title)
		if err := repo.SaveManga(manga); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to save manga: %w", err))
		}

		known, err := repo.GetChapters(manga.ID)
		cobra.CheckErr(err)
		existing := make(map[string]bool, len(known))
		for _, c := range known {
			existing[c.ID] = true
		}

		// Save chapter metadata (not downloaded yet)
		added := 0
		for i, c := range chapters {
			id := data.ChapterID(c.URL)
			if existing[id] {
				continue
			}
			chapter := &data.Chapter{ID: id, MangaID: manga.ID, Name: c.Name, URL: c.URL, Position: i + 1}
			if err := repo.SaveChapter(chapter); err != nil {
				logger.Warn("failed to save chapter", "chapter", c.Name, "err", err)
				continue
			}
			added++
		}

		fmt.Printf("✅ Added '%s' to library: %d chapters, %d new\n", title, len(chapters), added)
		fmt.Printf("💡 To download chapters, use: mangadl download %q --chapters 1-5\n", sourceURL)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <manga-url>",
	Short: "Remove a manga from your library",
	Long:  "Forget a manga and its chapter records. Downloaded files are kept.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := data.NewDuckDBRepository(settings.DatabasePath)
		cobra.CheckErr(err)
		defer repo.Close()

		manga, err := repo.GetManga(data.MangaID(args[0]))
		cobra.CheckErr(err)
		if manga == nil {
			cobra.CheckErr(fmt.Errorf("%s is not in the library", args[0]))
		}

		cobra.CheckErr(repo.DeleteManga(manga.ID))
		fmt.Printf("🗑️  Removed '%s' from library\n", manga.Name)
	},
}
