package domain

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Doctrine is the locked parameter set of the decision core. It is built once
// at startup from the reference values below, validated, and injected by
// value into every component. There is no runtime mutation path; changing a
// value requires an out-of-band validation run and a new doctrine version.
type Doctrine struct {
	Version string `default:"v7.4" validate:"required"`

	// Risk controller
	MFEThreshold    float64 `default:"7"   validate:"gt=0"`  // trailing activates at this MFE
	TrailOffset     float64 `default:"1.5" validate:"gt=0"`  // distance kept between MFE and trail stop
	DefaultSL       float64 `default:"30"  validate:"gt=0"`  // stop-loss at entry, points
	DefenseSL       float64 `default:"12"  validate:"gt=0"`  // reduced stop after loss-warning
	LWSBars         int     `default:"4"   validate:"gt=0"`  // bars before loss-warning check fires
	LWSMFEThreshold float64 `default:"1.5" validate:"gt=0"`  // MFE floor for loss-warning
	TP              float64 `default:"20"  validate:"gt=0"`  // fixed take-profit, points
	TimeoutBars     int     `default:"180" validate:"gt=0"`  // forced exit after this many bars

	// Zone ledger
	ZoneBand      float64 `default:"100" validate:"gt=0"` // price band width, locked
	CollapseAfter int     `default:"2"   validate:"gt=0"` // consecutive losses before collapse

	// Feature extractor / entry gate
	WindowBars    int     `default:"20"  validate:"gt=1"` // channel/depth window
	MinHistory    int     `default:"50"  validate:"gt=1"` // bars required before any decision
	IgnitionRange float64 `default:"30"  validate:"gt=0"` // minimum 20-bar range for ignition
	BodyZFloor    float64 `default:"1.0" validate:"gt=0"`
	RatioUpper    float64 `default:"1.5" validate:"gt=0"`
	RatioLower    float64 `default:"0.7" validate:"gt=0"`
	ChannelUpper  float64 `default:"80"  validate:"gt=0,lt=100"`
	ChannelLower  float64 `default:"20"  validate:"gt=0,lt=100"`

	// Certifier (theta=2 corroboration)
	RetryImpulseMin  int     `default:"2" validate:"gte=0"` // impulse count must exceed this
	RetryRecoveryMax float64 `default:"4" validate:"gt=0"`  // recovery must finish under this many bars
	MaxRetries       int     `default:"1" validate:"gt=0"`  // retry budget per zone
}

// LockedDoctrine returns the frozen reference parameter set.
// Panics on an invalid definition: a doctrine that fails its own
// invariants must never reach the pipeline.
func LockedDoctrine() Doctrine {
	var d Doctrine
	if err := defaults.Set(&d); err != nil {
		panic(fmt.Sprintf("doctrine defaults: %v", err))
	}
	if err := d.Validate(); err != nil {
		panic(fmt.Sprintf("doctrine invalid: %v", err))
	}
	return d
}

// Validate checks structural tags plus cross-field invariants.
func (d Doctrine) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return err
	}
	if d.DefenseSL >= d.DefaultSL {
		return &ConfigError{Field: "DefenseSL", Err: fmt.Errorf("defense stop %v must be tighter than default %v", d.DefenseSL, d.DefaultSL)}
	}
	if d.TrailOffset >= d.MFEThreshold {
		return &ConfigError{Field: "TrailOffset", Err: fmt.Errorf("trail offset %v must be below MFE threshold %v", d.TrailOffset, d.MFEThreshold)}
	}
	if d.ChannelLower >= d.ChannelUpper {
		return &ConfigError{Field: "ChannelLower", Err: fmt.Errorf("channel bounds inverted")}
	}
	if d.MinHistory < d.WindowBars {
		return &ConfigError{Field: "MinHistory", Err: fmt.Errorf("min history %d below window %d", d.MinHistory, d.WindowBars)}
	}
	return nil
}
