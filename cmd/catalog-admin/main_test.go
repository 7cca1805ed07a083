package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"--json", "--repair", "--grace=10m"})
	require.NoError(t, err)
	assert.True(t, opts.json)
	assert.True(t, opts.repair)
	assert.Equal(t, 10*time.Minute, opts.grace)

	_, err = parseOptions([]string{"--grace=soon"})
	assert.Error(t, err)

	_, err = parseOptions([]string{"--tenant-id=x"})
	assert.Error(t, err)

	_, err = parseOptions([]string{"repair"})
	assert.Error(t, err)
}

func TestComputeStatistics(t *testing.T) {
	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	records := []*catalog.FileRecord{
		{ID: uuid.New(), ExamType: "Final", ExamYear: 2023, SizeBytes: 10, UploadTimestamp: late},
		{ID: uuid.New(), ExamType: "Final", ExamYear: 2022, SizeBytes: 5, UploadTimestamp: early},
		{ID: uuid.New(), ExamType: "Midterm", ExamYear: 2023, SizeBytes: 1, UploadTimestamp: early.Add(time.Hour)},
	}

	stats := computeStatistics(records)
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, int64(16), stats.TotalBytes)
	assert.Equal(t, map[string]int{"Final": 2, "Midterm": 1}, stats.ByExamType)
	assert.Equal(t, map[int]int{2023: 2, 2022: 1}, stats.ByExamYear)
	require.NotNil(t, stats.Oldest)
	require.NotNil(t, stats.Newest)
	assert.Equal(t, early, *stats.Oldest)
	assert.Equal(t, late, *stats.Newest)

	empty := computeStatistics(nil)
	assert.Zero(t, empty.TotalCount)
	assert.Nil(t, empty.Oldest)
}
