package workforce

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every constant the engine consults. Values are plain data so
// a tuning file fully determines behavior alongside the seed.
type Tuning struct {
	TickHours float64 `yaml:"tick_hours" json:"tickHours"`

	Pay     PayTuning     `yaml:"pay" json:"pay"`
	Fatigue FatigueTuning `yaml:"fatigue" json:"fatigue"`
	Morale  MoraleTuning  `yaml:"morale" json:"morale"`
	Raise   RaiseTuning   `yaml:"raise" json:"raise"`
	Market  MarketTuning  `yaml:"market" json:"market"`

	// ExperienceHoursToMastery is the accrued hours at which level reaches 1.
	ExperienceHoursToMastery float64 `yaml:"experience_hours_to_mastery" json:"experienceHoursToMastery"`

	Warnings WarningTuning `yaml:"warnings" json:"warnings"`
}

type PayTuning struct {
	BaseHourlyRateCc   float64 `yaml:"base_hourly_rate_cc" json:"baseHourlyRateCc"`
	OvertimeMultiplier float64 `yaml:"overtime_multiplier" json:"overtimeMultiplier"`
}

type FatigueTuning struct {
	// PerOvertimeMinute is added for every minute worked beyond the baseline shift.
	PerOvertimeMinute float64 `yaml:"per_overtime_minute" json:"perOvertimeMinute"`
	BreakroomRecovery float64 `yaml:"breakroom_recovery" json:"breakroomRecovery"`
	DailyRecovery     float64 `yaml:"daily_recovery" json:"dailyRecovery"`
}

type MoraleTuning struct {
	// OvertimePenalty is applied once per employee per tick with overtime > 0.
	OvertimePenalty float64 `yaml:"overtime_penalty" json:"overtimePenalty"`
}

type RaiseTuning struct {
	MinEmploymentDays  int     `yaml:"min_employment_days" json:"minEmploymentDays"`
	CooldownDays       int     `yaml:"cooldown_days" json:"cooldownDays"`
	JitterDays         float64 `yaml:"jitter_days" json:"jitterDays"`
	AcceptMoraleDelta  float64 `yaml:"accept_morale_delta" json:"acceptMoraleDelta"`
	AcceptRateIncrease float64 `yaml:"accept_rate_increase" json:"acceptRateIncrease"`
	IgnoreMoraleDelta  float64 `yaml:"ignore_morale_delta" json:"ignoreMoraleDelta"`
	MaxRateIncrease    float64 `yaml:"max_rate_increase" json:"maxRateIncrease"`
}

type MarketTuning struct {
	ScanCostCc        float64 `yaml:"scan_cost_cc" json:"scanCostCc"`
	CandidatesPerScan int     `yaml:"candidates_per_scan" json:"candidatesPerScan"`
	// ValidityScans is how many later scans a candidate survives.
	ValidityScans int `yaml:"validity_scans" json:"validityScans"`
	// DefaultSchedule is given to hired candidates.
	DefaultSchedule Schedule `yaml:"default_schedule" json:"defaultSchedule"`
}

// Thresholds is an escalation ladder. For "higher is worse" metrics a value
// at or above Critical is critical, at or above Warning is a warning, at or
// above Info is info. LowerIsWorse flips the comparisons.
type Thresholds struct {
	Info         float64 `yaml:"info" json:"info"`
	Warning      float64 `yaml:"warning" json:"warning"`
	Critical     float64 `yaml:"critical" json:"critical"`
	LowerIsWorse bool    `yaml:"lower_is_worse" json:"lowerIsWorse"`
}

// Classify returns the severity for v, or false when v breaches nothing.
func (t Thresholds) Classify(v float64) (Severity, bool) {
	breach := func(limit float64) bool {
		if t.LowerIsWorse {
			return v <= limit
		}
		return v >= limit
	}
	switch {
	case breach(t.Critical):
		return SeverityCritical, true
	case breach(t.Warning):
		return SeverityWarning, true
	case breach(t.Info):
		return SeverityInfo, true
	}
	return "", false
}

type WarningTuning struct {
	QueueBacklog       Thresholds `yaml:"queue_backlog" json:"queueBacklog"`
	MaintenanceBacklog Thresholds `yaml:"maintenance_backlog" json:"maintenanceBacklog"`
	LowMorale          Thresholds `yaml:"low_morale" json:"lowMorale"`
	HighFatigue        Thresholds `yaml:"high_fatigue" json:"highFatigue"`
	P95WaitHours       Thresholds `yaml:"p95_wait_hours" json:"p95WaitHours"`
}

// DefaultTuning returns the stock constants.
func DefaultTuning() Tuning {
	return Tuning{
		TickHours: 1,
		Pay: PayTuning{
			BaseHourlyRateCc:   15,
			OvertimeMultiplier: 1.5,
		},
		Fatigue: FatigueTuning{
			PerOvertimeMinute: 0.002,
			BreakroomRecovery: 0.2,
			DailyRecovery:     0.1,
		},
		Morale: MoraleTuning{OvertimePenalty: 0.02},
		Raise: RaiseTuning{
			MinEmploymentDays:  180,
			CooldownDays:       180,
			JitterDays:         45,
			AcceptMoraleDelta:  0.06,
			AcceptRateIncrease: 0.05,
			IgnoreMoraleDelta:  -0.08,
			MaxRateIncrease:    1,
		},
		Market: MarketTuning{
			ScanCostCc:        1000,
			CandidatesPerScan: 3,
			ValidityScans:     1,
			DefaultSchedule:   Schedule{HoursPerDay: 8, OvertimeHoursPerDay: 2, DaysPerWeek: 5},
		},
		ExperienceHoursToMastery: 2000,
		Warnings: WarningTuning{
			QueueBacklog:       Thresholds{Info: 10, Warning: 25, Critical: 50},
			MaintenanceBacklog: Thresholds{Info: 3, Warning: 6, Critical: 12},
			LowMorale:          Thresholds{Info: 0.5, Warning: 0.35, Critical: 0.2, LowerIsWorse: true},
			HighFatigue:        Thresholds{Info: 0.7, Warning: 0.85, Critical: 0.95},
			P95WaitHours:       Thresholds{Info: 24, Warning: 72, Critical: 168},
		},
	}
}

// Validate rejects tunings the engine cannot run with.
func (t Tuning) Validate() error {
	if t.TickHours <= 0 || t.TickHours > 24 {
		return fmt.Errorf("tick_hours must be in (0,24], got %v", t.TickHours)
	}
	if t.Pay.BaseHourlyRateCc < 0 {
		return fmt.Errorf("pay.base_hourly_rate_cc must be >= 0")
	}
	if t.Pay.OvertimeMultiplier < 1 {
		return fmt.Errorf("pay.overtime_multiplier must be >= 1")
	}
	if t.Raise.MinEmploymentDays < 0 || t.Raise.CooldownDays < 0 || t.Raise.JitterDays < 0 {
		return fmt.Errorf("raise day constants must be >= 0")
	}
	if t.Raise.MaxRateIncrease <= 0 {
		return fmt.Errorf("raise.max_rate_increase must be > 0")
	}
	if t.Market.CandidatesPerScan < 0 || t.Market.ValidityScans < 0 {
		return fmt.Errorf("market counts must be >= 0")
	}
	if err := t.Market.DefaultSchedule.Validate(); err != nil {
		return fmt.Errorf("market.default_schedule: %w", err)
	}
	if t.ExperienceHoursToMastery <= 0 {
		return fmt.Errorf("experience_hours_to_mastery must be > 0")
	}
	return nil
}

// LoadTuning reads a YAML tuning file on top of DefaultTuning.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}
