package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/mangadl/pkg/app/styles"
	"github.com/kerbaras/mangadl/pkg/data"
)

// ResultList shows finished chapter outcomes as selectable cards.
type ResultList struct {
	Items         []data.DownloadOutcome
	SelectedIndex int
	Width         int
	Height        int
}

func NewResultList() *ResultList {
	return &ResultList{
		Items:         []data.DownloadOutcome{},
		SelectedIndex: 0,
		Width:         80,
		Height:        20,
	}
}

func (m *ResultList) SetItems(items []data.DownloadOutcome) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *ResultList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex++
	if m.SelectedIndex >= len(m.Items) {
		m.SelectedIndex = 0
	}
}

func (m *ResultList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *ResultList) Selected() *data.DownloadOutcome {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return &m.Items[m.SelectedIndex]
}

// visibleRange returns the slice of items that fits the height around the
// selection. Each card takes about five lines.
func (m *ResultList) visibleRange() (int, int) {
	perPage := m.Height / 5
	if perPage < 1 {
		perPage = 1
	}
	start := 0
	if m.SelectedIndex >= perPage {
		start = m.SelectedIndex - perPage + 1
	}
	end := start + perPage
	if end > len(m.Items) {
		end = len(m.Items)
	}
	return start, end
}

func (m *ResultList) View() string {
	if len(m.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render("No chapters downloaded")
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		item := m.Items[i]
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		title := styles.TextStyle.Bold(true).Render(item.ChapterName)
		status := styles.OutcomeStyle(item).Render(OutcomeLabel(item))

		lines := []string{title, status}
		if len(item.Items) > 0 {
			lines = append(lines, styles.MutedStyle.Render(
				fmt.Sprintf("Images: %d / %d", len(item.SuccessfulItems()), len(item.Items)),
			))
		}
		if item.Packaging != nil && item.Packaging.Err == nil {
			lines = append(lines, styles.MutedStyle.Render("Archive: "+item.Packaging.Path))
		}
		if msg := OutcomeError(item); msg != "" {
			lines = append(lines, styles.StatusError.Render(msg))
		}

		card := cardStyle.Width(m.Width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
		b.WriteString(card)
		b.WriteString("\n")
	}

	return b.String()
}

// OutcomeLabel is a short description of a finished chapter.
func OutcomeLabel(o data.DownloadOutcome) string {
	switch {
	case !o.Downloaded():
		return "failed"
	case o.Packaging != nil && o.Packaging.Err != nil:
		return "downloaded, packaging failed"
	case len(o.FailedItems()) > 0:
		return fmt.Sprintf("done, %d images missing", len(o.FailedItems()))
	default:
		return "done"
	}
}

// OutcomeError returns the error worth showing for o, if any.
func OutcomeError(o data.DownloadOutcome) string {
	switch {
	case o.Err != nil:
		return "Error: " + o.Err.Error()
	case o.Packaging != nil && o.Packaging.Err != nil:
		return "Error: " + o.Packaging.Err.Error()
	case o.Cleanup != nil && len(o.Cleanup.Failures) > 0:
		return fmt.Sprintf("Could not remove %d images", len(o.Cleanup.Failures))
	default:
		return ""
	}
}
