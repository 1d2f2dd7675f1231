package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name      string
		days      int
		threshold int
		expected  string
	}{
		{
			name:      "recent activity",
			days:      0,
			threshold: 14,
			expected:  LowValue,
		},
		{
			name:      "exactly half the threshold",
			days:      7,
			threshold: 14,
			expected:  LowValue,
		},
		{
			name:      "past half the threshold",
			days:      8,
			threshold: 14,
			expected:  ModerateValue,
		},
		{
			name:      "exactly the threshold",
			days:      14,
			threshold: 14,
			expected:  ModerateValue,
		},
		{
			name:      "past the threshold",
			days:      15,
			threshold: 14,
			expected:  HighValue,
		},
		{
			name:      "past double the threshold",
			days:      29,
			threshold: 14,
			expected:  CriticalValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.days, tt.threshold))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name  string
		days  int
		label string
	}{
		{"low", 1, LowValue},
		{"moderate", 10, ModerateValue},
		{"high", 20, HighValue},
		{"critical", 999, CriticalValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetColorLabel(tt.days, 14)
			// Should contain the plain label
			assert.Contains(t, result, tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetDBFilePath(t *testing.T) {
	dbPath := GetDBFilePath()
	cachePath := GetCacheDBFilePath()
	assert.True(t, strings.HasSuffix(dbPath, ".teampulse.db"))
	assert.True(t, strings.HasSuffix(cachePath, ".teampulse_cache.db"))
	assert.NotEqual(t, dbPath, cachePath)
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcdefg...", TruncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

// TestCalculateDaysBetween verifies the whole-day calculation based on explicit start and end times.
func TestCalculateDaysBetween(t *testing.T) {
	fixedEnd := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		duration     time.Duration
		expectedDays int
	}{
		{"end before start", -1 * time.Second, 0},
		{"zero duration", 0, 0},
		{"less than 24 hours", 23*time.Hour + 59*time.Minute, 0},
		{"exactly 24 hours", 24 * time.Hour, 1},
		{"fifteen days", 15 * 24 * time.Hour, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := fixedEnd.Add(-tt.duration)
			assert.Equal(t, tt.expectedDays, CalculateDaysBetween(start, fixedEnd))
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	in := time.Date(2025, 1, 1, 10, 0, 0, 123456789, loc)
	out := NormalizeTime(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 0, out.Nanosecond())
	assert.True(t, out.Equal(in.Truncate(time.Second)))

	p := TimePtr(in)
	require.NotNil(t, p)
	assert.Equal(t, out, *p)
}
