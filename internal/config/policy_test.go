package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yml")
	content := []byte(`enforcement:
  contestationWindowDays: 45
  notificationMaxAttempts: 3
  escalation:
    reminderDays: 2
    warningDays: 10
    formalNoticeDays: 20
    finalNoticeDays: 30
    forcedRecoveryDays: 40
    minIntervalDays: 5
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewPolicyHolder(Config{PolicyConfig: path}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 45, policy.ContestationWindowDays)
	assert.Equal(t, 3, policy.NotificationMaxAttempts)
	assert.Equal(t, 40, policy.Escalation.ForcedRecoveryDays)
	assert.Equal(t, 5, policy.Escalation.MinIntervalDays)
}

func TestNewPolicyHolderRejectsUnorderedThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yml")
	content := []byte(`enforcement:
  escalation:
    reminderDays: 20
    warningDays: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, err := NewPolicyHolder(Config{PolicyConfig: path}, zap.NewNop())
	assert.Error(t, err)
}

func TestValidatePolicyDefaults(t *testing.T) {
	assert.NoError(t, ValidatePolicy(DefaultEnforcementPolicy()))

	p := DefaultEnforcementPolicy()
	p.ContestationWindowDays = 0
	assert.Error(t, ValidatePolicy(p))
}

func TestPolicyHolderNilFallsBackToDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultEnforcementPolicy(), holder.Get())
}
