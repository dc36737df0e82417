package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/learnloop/campaign-engine/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) *services.RunReport { return &services.RunReport{} }

func TestRegisterValidatesSpec(t *testing.T) {
	s, err := New("Europe/London", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Register(services.JobSendReminders, "0 9 * * *", noop))
	require.NoError(t, s.Register(services.JobProcessNotifications, "*/5 * * * *", noop))
	assert.Error(t, s.Register("bad", "every five minutes", noop))
	assert.Equal(t, 2, s.Entries())
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons", time.Minute)
	assert.Error(t, err)
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s, err := New("UTC", time.Hour)
	require.NoError(t, err)

	started := make(chan struct{}, 1)
	cancelled := make(chan struct{})
	require.NoError(t, s.Register("block", "@every 1s", func(ctx context.Context) *services.RunReport {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		close(cancelled)
		return &services.RunReport{}
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	<-cancelled
}
