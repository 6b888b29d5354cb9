package analytics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-optimizer/console/internal/models"
)

func newTestStore(t *testing.T) *ProjectStore {
	t.Helper()
	s, err := NewProjectStore(Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ago(now time.Time, months int) *time.Time {
	t := now.AddDate(0, -months, 0)
	return &t
}

func TestAggregate(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	projects := []models.Project{
		{Name: "a", Language: "Go", Stars: 50, UpdatedAt: ago(now, 1)},
		{Name: "b", Language: "Go", Stars: 500, UpdatedAt: ago(now, 2)},
		{Name: "c", Language: "Rust", Stars: 5000, UpdatedAt: ago(now, 12)},
		{Name: "d", Stars: 50000},
	}

	agg, err := s.Aggregate(context.Background(), projects, now)
	require.NoError(t, err)

	assert.Equal(t, 4, agg.Total)
	assert.Equal(t, 2, agg.Active)
	assert.Equal(t, 2, agg.Stale)
	assert.InDelta(t, 13887.5, agg.AvgStars, 0.001)

	require.NotEmpty(t, agg.Languages)
	assert.Equal(t, Bucket{Label: "Go", Count: 2}, agg.Languages[0])
	assert.ElementsMatch(t, []Bucket{{"Go", 2}, {"Rust", 1}, {models.Unknown, 1}}, agg.Languages)

	assert.Equal(t, []Bucket{{"<100", 1}, {"100-1k", 1}, {"1k-10k", 1}, {"10k+", 1}}, agg.Stars)
}

func TestAggregate_Empty(t *testing.T) {
	s := newTestStore(t)

	agg, err := s.Aggregate(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Total)
	assert.Empty(t, agg.Languages)
	assert.Len(t, agg.Stars, len(StarBuckets))
}

func TestAggregate_FoldsLanguagesIntoOther(t *testing.T) {
	s := newTestStore(t)

	var projects []models.Project
	for i := 0; i < MaxLanguages+3; i++ {
		projects = append(projects, models.Project{Name: fmt.Sprint(i), Language: fmt.Sprintf("lang%02d", i)})
	}

	agg, err := s.Aggregate(context.Background(), projects, time.Now())
	require.NoError(t, err)
	require.Len(t, agg.Languages, MaxLanguages+1)
	assert.Equal(t, Bucket{Label: "other", Count: 3}, agg.Languages[MaxLanguages])
}

func TestAggregate_ConcurrentBatchesAreIsolated(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	var wg sync.WaitGroup
	errs := make([]error, 6)
	totals := make([]int, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			projects := make([]models.Project, i+1)
			for j := range projects {
				projects[j] = models.Project{Name: fmt.Sprintf("p%d-%d", i, j), Stars: j}
			}
			agg, err := s.Aggregate(context.Background(), projects, now)
			errs[i] = err
			if err == nil {
				totals[i] = agg.Total
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 6; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, i+1, totals[i])
	}
}
