package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/core"
)

type fakeReports struct {
	reports []core.Report
	saved   []string
	err     error
}

func (f *fakeReports) SaveReport(_ context.Context, generatedBy string) (core.Report, error) {
	if f.err != nil {
		return core.Report{}, f.err
	}
	f.saved = append(f.saved, generatedBy)
	return core.Report{ID: "r", GeneratedBy: generatedBy}, nil
}

func (f *fakeReports) Reports(context.Context) ([]core.Report, error) {
	return f.reports, nil
}

func TestReportScheduler_ProcessDueReport(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		reports []core.Report
		want    bool
	}{
		{
			name: "no reports yet",
			want: true,
		},
		{
			name: "scheduled report this month",
			reports: []core.Report{
				{GeneratedBy: ScheduledReportAuthor, GeneratedAt: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)},
			},
			want: false,
		},
		{
			name: "only a manual report this month",
			reports: []core.Report{
				{GeneratedBy: "treasurer", GeneratedAt: time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC)},
				{GeneratedBy: ScheduledReportAuthor, GeneratedAt: time.Date(2024, 2, 1, 6, 0, 0, 0, time.UTC)},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeReports{reports: tt.reports}
			p, err := NewReportScheduler(fake, "monthly", 1, nil)
			require.NoError(t, err)

			saved, err := p.ProcessDueReport(context.Background(), now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, saved)
			if tt.want {
				assert.Equal(t, []string{ScheduledReportAuthor}, fake.saved)
			} else {
				assert.Empty(t, fake.saved)
			}
		})
	}
}

func TestReportScheduler_SaveError(t *testing.T) {
	fake := &fakeReports{err: errors.New("disk full")}
	p, err := NewReportScheduler(fake, "daily", 0, nil)
	require.NoError(t, err)

	_, err = p.ProcessDueReport(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestNewReportScheduler_UnknownFrequency(t *testing.T) {
	_, err := NewReportScheduler(&fakeReports{}, "hourly", 0, nil)
	assert.Error(t, err)
}
