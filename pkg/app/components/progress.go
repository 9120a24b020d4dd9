package components

import (
	"fmt"
	"strings"

	"github.com/kerbaras/mangadl/pkg/app/styles"
	"github.com/kerbaras/mangadl/pkg/data"
)

type chapterProgress struct {
	name      string
	completed int
	total     int
	finished  bool
}

// ProgressTracker keeps the latest progress of each chapter in a batch.
type ProgressTracker struct {
	chapters map[string]*chapterProgress
	order    []string
	width    int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		chapters: make(map[string]*chapterProgress),
		width:    width,
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

// Update applies a chapter progress event. Batch events are ignored. Counts
// never go backwards, so late or reordered events are harmless.
func (p *ProgressTracker) Update(event data.ProgressEvent) {
	if event.Scope != data.ScopeChapter || event.Chapter == "" {
		return
	}

	c, ok := p.chapters[event.Chapter]
	if !ok {
		c = &chapterProgress{name: event.Chapter}
		p.chapters[event.Chapter] = c
		p.order = append(p.order, event.Chapter)
	}
	if event.Total > 0 {
		c.total = event.Total
	}
	if event.Completed > c.completed {
		c.completed = event.Completed
	}
	if c.total > 0 && c.completed >= c.total {
		c.finished = true
	}
}

// Finish marks a chapter as no longer active.
func (p *ProgressTracker) Finish(chapter string) {
	if c, ok := p.chapters[chapter]; ok {
		c.finished = true
	}
}

func (p *ProgressTracker) Clear() {
	p.chapters = make(map[string]*chapterProgress)
	p.order = nil
}

// Active returns the chapters still downloading, in the order they started.
func (p *ProgressTracker) Active() []string {
	var out []string
	for _, name := range p.order {
		if !p.chapters[name].finished {
			out = append(out, name)
		}
	}
	return out
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.Active()) > 0
}

func (p *ProgressTracker) View() string {
	active := p.Active()
	if len(active) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Active Downloads"))
	b.WriteString("\n")

	for _, name := range active {
		c := p.chapters[name]
		b.WriteString(styles.TextStyle.Render(name))
		b.WriteString("\n")

		if c.total > 0 {
			b.WriteString(renderProgressBar(c.completed, c.total, min(p.width/2, 40)))
			b.WriteString(" ")
			percentage := float64(c.completed) / float64(c.total) * 100
			b.WriteString(styles.StatusDownloading.Render(fmt.Sprintf("%d/%d pages - %.0f%%", c.completed, c.total, percentage)))
		} else {
			b.WriteString(styles.MutedStyle.Render("fetching image list"))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}
