package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnforcementPolicy carries the externally configured enforcement windows.
type EnforcementPolicy struct {
	ContestationWindowDays  int              `mapstructure:"contestationWindowDays"`
	Escalation              EscalationPolicy `mapstructure:"escalation"`
	NotificationMaxAttempts int              `mapstructure:"notificationMaxAttempts"`
}

// EscalationPolicy holds stage thresholds in days after the note due date.
type EscalationPolicy struct {
	ReminderDays       int `mapstructure:"reminderDays"`
	WarningDays        int `mapstructure:"warningDays"`
	FormalNoticeDays   int `mapstructure:"formalNoticeDays"`
	FinalNoticeDays    int `mapstructure:"finalNoticeDays"`
	ForcedRecoveryDays int `mapstructure:"forcedRecoveryDays"`
	MinIntervalDays    int `mapstructure:"minIntervalDays"`
}

func DefaultEnforcementPolicy() EnforcementPolicy {
	return EnforcementPolicy{
		ContestationWindowDays: 30,
		Escalation: EscalationPolicy{
			ReminderDays:       1,
			WarningDays:        15,
			FormalNoticeDays:   30,
			FinalNoticeDays:    45,
			ForcedRecoveryDays: 60,
			MinIntervalDays:    7,
		},
		NotificationMaxAttempts: 5,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds EnforcementPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy EnforcementPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	if cfg.PolicyConfig != "" {
		v.SetConfigFile(cfg.PolicyConfig)
	} else {
		v.SetConfigName("policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/redevance")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REDEVANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEnforcementPolicy()
	v.SetDefault("enforcement.contestationWindowDays", defaults.ContestationWindowDays)
	v.SetDefault("enforcement.notificationMaxAttempts", defaults.NotificationMaxAttempts)
	v.SetDefault("enforcement.escalation.reminderDays", defaults.Escalation.ReminderDays)
	v.SetDefault("enforcement.escalation.warningDays", defaults.Escalation.WarningDays)
	v.SetDefault("enforcement.escalation.formalNoticeDays", defaults.Escalation.FormalNoticeDays)
	v.SetDefault("enforcement.escalation.finalNoticeDays", defaults.Escalation.FinalNoticeDays)
	v.SetDefault("enforcement.escalation.forcedRecoveryDays", defaults.Escalation.ForcedRecoveryDays)
	v.SetDefault("enforcement.escalation.minIntervalDays", defaults.Escalation.MinIntervalDays)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var policy EnforcementPolicy
	if err := v.UnmarshalKey("enforcement", &policy); err != nil {
		return nil, err
	}
	if err := ValidatePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("config.policy")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EnforcementPolicy
		if err := v.UnmarshalKey("enforcement", &updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := ValidatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() EnforcementPolicy {
	if h == nil {
		return DefaultEnforcementPolicy()
	}
	policy, ok := h.current.Load().(EnforcementPolicy)
	if !ok {
		return DefaultEnforcementPolicy()
	}
	return policy
}

func ValidatePolicy(p EnforcementPolicy) error {
	if p.ContestationWindowDays <= 0 {
		return errors.New("enforcement.contestationWindowDays must be positive")
	}
	if p.NotificationMaxAttempts <= 0 {
		return errors.New("enforcement.notificationMaxAttempts must be positive")
	}
	e := p.Escalation
	thresholds := []int{e.ReminderDays, e.WarningDays, e.FormalNoticeDays, e.FinalNoticeDays, e.ForcedRecoveryDays}
	prev := -1
	for i, days := range thresholds {
		if days < 0 || days <= prev {
			return fmt.Errorf("enforcement.escalation thresholds must be strictly increasing (position %d)", i)
		}
		prev = days
	}
	if e.MinIntervalDays < 0 {
		return errors.New("enforcement.escalation.minIntervalDays cannot be negative")
	}
	return nil
}
