package data

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageDescriptors(t *testing.T) {
	images := NewImageDescriptors([]string{"a", "b", "c"})

	require.Len(t, images, 3)
	for i, img := range images {
		assert.Equal(t, i+1, img.Ordinal)
	}
	assert.Equal(t, "c", images[2].URL)

	assert.Empty(t, NewImageDescriptors(nil))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatNone, false},
		{"none", FormatNone, false},
		{"PDF", FormatPDF, false},
		{" cbz ", FormatCBZ, false},
		{"epub", FormatEPUB, false},
		{"zip", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "cbz", FormatCBZ.Ext())
	assert.Equal(t, "", FormatNone.Ext())
}

func TestStateIsTerminal(t *testing.T) {
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateDownloading.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
}

func TestDownloadOutcome(t *testing.T) {
	outcome := DownloadOutcome{
		State: StateDone,
		Items: []ItemResult{
			{Ordinal: 1, Success: true, Attempts: 1},
			{Ordinal: 2, Success: false, Attempts: 3, LastError: errors.New("timeout")},
			{Ordinal: 3, Success: true, Attempts: 2},
		},
	}

	assert.True(t, outcome.Downloaded())
	assert.False(t, outcome.Succeeded())
	assert.Len(t, outcome.SuccessfulItems(), 2)
	require.Len(t, outcome.FailedItems(), 1)
	assert.Equal(t, 2, outcome.FailedItems()[0].Ordinal)

	t.Run("packaging failure is not a download failure", func(t *testing.T) {
		o := DownloadOutcome{
			State:     StateDone,
			Items:     []ItemResult{{Ordinal: 1, Success: true}},
			Packaging: &PackagingResult{Format: FormatPDF, Err: errors.New("disk full")},
		}
		assert.True(t, o.Downloaded())
		assert.False(t, o.Succeeded())
	})

	t.Run("failed", func(t *testing.T) {
		o := DownloadOutcome{State: StateFailed}
		assert.False(t, o.Downloaded())
		assert.False(t, o.Succeeded())
	})
}
