package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kerbaras/mangadl/pkg/data"
)

// SelectChapterIndexes parses a chapter selection such as "1,3-5" against
// total chapters and returns the chosen 0-based indexes in ascending order
// without duplicates. Chapters are numbered from 1. An empty selection or
// "all" picks every chapter.
func SelectChapterIndexes(total int, selection string) ([]int, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" || strings.EqualFold(selection, "all") {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	chosen := make([]bool, total)
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		start, end, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		if start < 1 || end > total || start > end {
			return nil, fmt.Errorf("chapter range %q out of bounds (1-%d)", part, total)
		}
		for n := start; n <= end; n++ {
			chosen[n-1] = true
		}
	}

	var indexes []int
	for i, ok := range chosen {
		if ok {
			indexes = append(indexes, i)
		}
	}
	if len(indexes) == 0 {
		return nil, fmt.Errorf("no chapters selected by %q", selection)
	}
	return indexes, nil
}

func parseRange(part string) (int, int, error) {
	from, to, isRange := strings.Cut(part, "-")
	start, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chapter selection %q", part)
	}
	if !isRange {
		return start, start, nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chapter selection %q", part)
	}
	return start, end, nil
}

// SelectChapters returns the chapters picked by selection, in their
// original order.
func SelectChapters(chapters []data.ChapterDescriptor, selection string) ([]data.ChapterDescriptor, error) {
	indexes, err := SelectChapterIndexes(len(chapters), selection)
	if err != nil {
		return nil, err
	}
	out := make([]data.ChapterDescriptor, len(indexes))
	for i, idx := range indexes {
		out[i] = chapters[idx]
	}
	return out, nil
}
