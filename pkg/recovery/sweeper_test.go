package recovery_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/recovery"
)

func TestNewSweeper_RejectsInvalidSchedule(t *testing.T) {
	env := newRecoveryEnv(t, 0)

	_, err := recovery.NewSweeper(env.manager, "every day at noon")
	require.ErrorContains(t, err, "invalid sweep schedule")
}

func TestSweeperRunOnce_AnnouncesExpiredModels(t *testing.T) {
	env := newRecoveryEnv(t, 90*24*time.Hour)
	seedDeletedModel(t, env.store, "model-old", 100*24*time.Hour)
	seedDeletedModel(t, env.store, "model-older", 120*24*time.Hour)
	seedDeletedModel(t, env.store, "model-fresh", 10*24*time.Hour)

	sweeper, err := recovery.NewSweeper(env.manager, "")
	require.NoError(t, err)

	expired, err := sweeper.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	expiredEvents := env.bus.PublishedEvents(events.RecoveryWindowExpiredEvent)
	require.Len(t, expiredEvents, 2)

	var ids []string

	for _, raw := range expiredEvents {
		event, ok := raw.(events.RecoveryWindowExpired)
		require.True(t, ok)
		ids = append(ids, event.ModelID)
		assert.Equal(t, 90, event.WindowDays)
		assert.False(t, event.DeletedAt.IsZero())
	}

	assert.ElementsMatch(t, []string{"model-old", "model-older"}, ids)

	entries, err := env.store.AuditLogRepository().ListByAction(t.Context(), models.AuditRetentionExpired)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSweeperRunOnce_DoesNotAnnounceTwice(t *testing.T) {
	env := newRecoveryEnv(t, 90*24*time.Hour)
	seedDeletedModel(t, env.store, "model-old", 100*24*time.Hour)

	sweeper, err := recovery.NewSweeper(env.manager, "")
	require.NoError(t, err)

	first, err := sweeper.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := sweeper.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, second)

	assert.Len(t, env.bus.PublishedEvents(events.RecoveryWindowExpiredEvent), 1)

	entries, err := env.store.AuditLogRepository().ListByAction(t.Context(), models.AuditRetentionExpired)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSweeperRunOnce_NothingExpired(t *testing.T) {
	env := newRecoveryEnv(t, 90*24*time.Hour)
	seedDeletedModel(t, env.store, "model-fresh", 10*24*time.Hour)

	sweeper, err := recovery.NewSweeper(env.manager, "")
	require.NoError(t, err)

	expired, err := sweeper.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestSweeperRunOnce_ExpiredModelRemainsAssessable(t *testing.T) {
	env := newRecoveryEnv(t, 90*24*time.Hour)
	seedDeletedModel(t, env.store, "model-old", 100*24*time.Hour)

	sweeper, err := recovery.NewSweeper(env.manager, "")
	require.NoError(t, err)

	_, err = sweeper.RunOnce(t.Context())
	require.NoError(t, err)

	// The sweep announces expiry without purging: an assessment afterwards
	// still finds the tombstone and routes through escalation.
	assessment, err := env.manager.AssessRecoveryEligibility(t.Context(), "model-old", "kara")
	require.NoError(t, err)
	assert.Equal(t, models.RecoveryExpired, assessment.Eligibility)
	require.NotNil(t, assessment.Escalation)
}
