package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangadl/pkg/app/screens"
	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/services"
)

// App is the terminal UI for one download batch.
type App struct {
	title    data.Title
	chapters int
	events   chan data.ProgressEvent
}

func NewApp(title data.Title, chapters int) *App {
	return &App{
		title:    title,
		chapters: chapters,
		events:   make(chan data.ProgressEvent, 1024),
	}
}

// Progress returns the function the download engine reports to.
func (a *App) Progress() services.ProgressFunc {
	return services.ChannelProgress(a.events)
}

// Run shows the UI while run executes and returns its result.
func (a *App) Run(ctx context.Context, run screens.RunFunc) (*services.BatchReport, error) {
	model := screens.NewBatchScreen(ctx, a.title, a.chapters, a.events, func(ctx context.Context) (*services.BatchReport, error) {
		// nothing reports progress once the batch has returned
		defer close(a.events)
		return run(ctx)
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(*screens.BatchScreen).Report()
}
