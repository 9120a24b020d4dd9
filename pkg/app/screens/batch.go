package screens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangadl/pkg/app/components"
	"github.com/kerbaras/mangadl/pkg/app/styles"
	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/services"
)

// RunFunc runs the batch shown by the screen.
type RunFunc func(ctx context.Context) (*services.BatchReport, error)

type progressMsg data.ProgressEvent

type batchFinishedMsg struct {
	report *services.BatchReport
	err    error
}

// BatchScreen shows a running download batch and its results.
type BatchScreen struct {
	title  data.Title
	events <-chan data.ProgressEvent
	run    RunFunc
	ctx    context.Context
	cancel context.CancelFunc

	tracker *components.ProgressTracker
	results *components.ResultList
	bar     progress.Model
	spinner spinner.Model

	completed  int
	total      int
	finished   bool
	cancelling bool
	report     *services.BatchReport
	err        error

	width  int
	height int
}

func NewBatchScreen(ctx context.Context, title data.Title, chapters int, events <-chan data.ProgressEvent, run RunFunc) *BatchScreen {
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusDownloading

	return &BatchScreen{
		title:   title,
		events:  events,
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		tracker: components.NewProgressTracker(80),
		results: components.NewResultList(),
		bar:     progress.New(progress.WithGradient(string(styles.Secondary), string(styles.Primary))),
		spinner: sp,
		total:   chapters,
		width:   80,
		height:  24,
	}
}

func (s *BatchScreen) Init() tea.Cmd {
	return tea.Batch(s.spinner.Tick, s.start, s.waitForEvent)
}

func (s *BatchScreen) start() tea.Msg {
	report, err := s.run(s.ctx)
	return batchFinishedMsg{report: report, err: err}
}

func (s *BatchScreen) waitForEvent() tea.Msg {
	event, ok := <-s.events
	if !ok {
		return nil
	}
	return progressMsg(event)
}

func (s *BatchScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.tracker.SetWidth(msg.Width)
		s.bar.Width = min(msg.Width-4, 60)
		s.results.Width = msg.Width
		s.results.Height = msg.Height - 8

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if s.finished {
				return s, tea.Quit
			}
			if !s.cancelling {
				s.cancelling = true
				s.cancel()
			}
		case "up", "k":
			s.results.Prev()
		case "down", "j":
			s.results.Next()
		case "enter":
			if s.finished {
				return s, tea.Quit
			}
		}

	case progressMsg:
		return s, tea.Batch(s.applyProgress(data.ProgressEvent(msg)), s.waitForEvent)

	case batchFinishedMsg:
		s.finished = true
		s.report = msg.report
		s.err = msg.err
		s.tracker.Clear()
		if msg.report != nil {
			s.results.SetItems(msg.report.Outcomes)
			s.completed = len(msg.report.Outcomes)
		}
		return s, s.bar.SetPercent(1)

	case progress.FrameMsg:
		model, cmd := s.bar.Update(msg)
		s.bar = model.(progress.Model)
		return s, cmd

	case spinner.TickMsg:
		if s.finished {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s *BatchScreen) applyProgress(event data.ProgressEvent) tea.Cmd {
	if event.Scope != data.ScopeBatch {
		s.tracker.Update(event)
		return nil
	}

	if event.Total > 0 {
		s.total = event.Total
	}
	if event.Chapter != "" {
		s.tracker.Finish(event.Chapter)
	}
	if event.Completed > s.completed {
		s.completed = event.Completed
	}
	if s.total == 0 {
		return nil
	}
	return s.bar.SetPercent(float64(s.completed) / float64(s.total))
}

// Report returns the batch result once the screen has finished.
func (s *BatchScreen) Report() (*services.BatchReport, error) {
	return s.report, s.err
}

func (s *BatchScreen) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("📚 %s", s.title)))
	b.WriteString("\n")
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("%d chapters selected", s.total)))
	b.WriteString("\n")

	if !s.finished {
		status := fmt.Sprintf("%s Downloading chapters %d/%d", s.spinner.View(), s.completed, s.total)
		if s.cancelling {
			status = styles.StatusWarning.Render("Cancelling, waiting for running downloads to stop...")
		}
		b.WriteString(status)
		b.WriteString("\n")
		b.WriteString(s.bar.View())
		b.WriteString("\n\n")
		b.WriteString(s.tracker.View())
		b.WriteString(styles.HelpStyle.Render("q: cancel"))
		return b.String()
	}

	if s.err != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)))
		b.WriteString("\n")
		b.WriteString(styles.HelpStyle.Render("q: quit"))
		return b.String()
	}

	b.WriteString(s.summaryLine())
	b.WriteString("\n\n")
	b.WriteString(s.results.View())
	b.WriteString(styles.HelpStyle.Render("↑/↓: navigate • q: quit"))
	return b.String()
}

func (s *BatchScreen) summaryLine() string {
	if s.report == nil {
		return ""
	}
	summary := s.report.Summary()
	parts := []string{styles.StatusCompleted.Render(fmt.Sprintf("%d done", summary.Done))}
	if summary.Partial > 0 {
		parts = append(parts, styles.StatusWarning.Render(fmt.Sprintf("%d partial", summary.Partial)))
	}
	if summary.Failed > 0 {
		parts = append(parts, styles.StatusError.Render(fmt.Sprintf("%d failed", summary.Failed)))
	}
	if summary.PackagingFailed > 0 {
		parts = append(parts, styles.StatusError.Render(fmt.Sprintf("%d not packaged", summary.PackagingFailed)))
	}
	return strings.Join(parts, styles.MutedStyle.Render(" • ")) +
		styles.MutedStyle.Render(fmt.Sprintf("  (%s)", s.report.Elapsed.Round(10*time.Millisecond)))
}
