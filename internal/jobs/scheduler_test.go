package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/common"
	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/features/distribution"
)

type fakeDistributor struct {
	runs int
	err  error
}

func (f *fakeDistributor) Run(context.Context) (*distribution.Result, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &distribution.Result{Paid: 2, Amount: decimal.NewFromInt(40)}, nil
}

type fakeRetrier struct{ calls int }

func (f *fakeRetrier) RetryPending(context.Context) (int, int, error) {
	f.calls++
	return 1, 0, nil
}

func testConfig(dist string) *config.Config {
	return &config.Config{AppTimezone: "Asia/Kolkata", DistributionCron: dist, ReferralRetryCron: "*/5 * * * *"}
}

func TestStartRegistersJobs(t *testing.T) {
	s := NewScheduler(testConfig("0 0 * * *"), &fakeDistributor{}, &fakeRetrier{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 3)
}

func TestDistributionCronIsOptional(t *testing.T) {
	s := NewScheduler(testConfig(""), &fakeDistributor{}, &fakeRetrier{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 2)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(testConfig("every day"), &fakeDistributor{}, &fakeRetrier{})
	assert.Error(t, s.Start(context.Background()))
}

func TestJobsSurviveErrors(t *testing.T) {
	ctx := context.Background()
	dist := &fakeDistributor{err: common.ErrRunInProgress}
	retrier := &fakeRetrier{}
	var purged []string
	s := NewScheduler(testConfig(""), dist, retrier,
		PurgerFunc(func(context.Context) (int64, error) {
			purged = append(purged, "sessions")
			return 3, nil
		}),
		PurgerFunc(func(context.Context) (int64, error) {
			purged = append(purged, "broken")
			return 0, errors.New("db down")
		}),
		PurgerFunc(func(context.Context) (int64, error) {
			purged = append(purged, "attempts")
			return 1, nil
		}),
	)

	s.runDistribution(ctx)
	dist.err = nil
	s.runDistribution(ctx)
	s.retryCommissions(ctx)
	s.purge(ctx)

	assert.Equal(t, 2, dist.runs)
	assert.Equal(t, 1, retrier.calls)
	assert.Equal(t, []string{"sessions", "broken", "attempts"}, purged)
}
