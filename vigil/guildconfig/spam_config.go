package guildconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// SpamConfig holds the per-guild pressure scoring parameters. All fields
// are required on write; a partial record is rejected, never default-filled.
type SpamConfig struct {
	// BasePressure is added for every message regardless of content.
	BasePressure float64 `json:"base_pressure"`
	// ImagePressure is added per attached image or embed.
	ImagePressure float64 `json:"image_pressure"`
	// LengthPressure is added per UTF-8 code point of message length.
	LengthPressure float64 `json:"length_pressure"`
	// LinePressure is added per line break.
	LinePressure float64 `json:"line_pressure"`
	// MaxPressure is the threshold above which a user is silenced.
	MaxPressure float64 `json:"max_pressure"`
	// PingPressure is added per distinct mentioned user.
	PingPressure float64 `json:"ping_pressure"`
	// PressureDecay is the number of seconds it takes BasePressure worth
	// of pressure to fully drain.
	PressureDecay float64 `json:"pressure_decay"`
	// SilenceTimeoutSecs is how long an automatic silence lasts, in seconds.
	SilenceTimeoutSecs float64 `json:"silence_timeout"`
}

func (c SpamConfig) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutSecs * float64(time.Second))
}

// DefaultSpamConfig is the compiled-in fallback used whenever a guild has
// no stored spam_config.
var DefaultSpamConfig = SpamConfig{
	BasePressure:       10,
	ImagePressure:      8.3,
	LengthPressure:     0.00625,
	LinePressure:       0.714,
	MaxPressure:        60,
	PingPressure:       2.5,
	PressureDecay:      2.5,
	SilenceTimeoutSecs: 300,
}

// spamConfigFields mirrors SpamConfig with pointers so missing fields are
// distinguishable from zero values.
type spamConfigFields struct {
	BasePressure       *float64 `json:"base_pressure"`
	ImagePressure      *float64 `json:"image_pressure"`
	LengthPressure     *float64 `json:"length_pressure"`
	LinePressure       *float64 `json:"line_pressure"`
	MaxPressure        *float64 `json:"max_pressure"`
	PingPressure       *float64 `json:"ping_pressure"`
	PressureDecay      *float64 `json:"pressure_decay"`
	SilenceTimeoutSecs *float64 `json:"silence_timeout"`
}

// ParseSpamConfig decodes and validates a full spam config record.
func ParseSpamConfig(raw []byte) (SpamConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var fields spamConfigFields
	if err := dec.Decode(&fields); err != nil {
		return SpamConfig{}, &ValidationError{Key: KeySpamConfig, Reason: err.Error()}
	}

	required := map[string]*float64{
		"base_pressure":   fields.BasePressure,
		"image_pressure":  fields.ImagePressure,
		"length_pressure": fields.LengthPressure,
		"line_pressure":   fields.LinePressure,
		"max_pressure":    fields.MaxPressure,
		"ping_pressure":   fields.PingPressure,
		"pressure_decay":  fields.PressureDecay,
		"silence_timeout": fields.SilenceTimeoutSecs,
	}
	for name, v := range required {
		if v == nil {
			return SpamConfig{}, &ValidationError{
				Key:    KeySpamConfig,
				Reason: fmt.Sprintf("missing required field %q", name),
			}
		}
		if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return SpamConfig{}, &ValidationError{
				Key:    KeySpamConfig,
				Reason: fmt.Sprintf("field %q must be a non-negative number", name),
			}
		}
	}

	return SpamConfig{
		BasePressure:       *fields.BasePressure,
		ImagePressure:      *fields.ImagePressure,
		LengthPressure:     *fields.LengthPressure,
		LinePressure:       *fields.LinePressure,
		MaxPressure:        *fields.MaxPressure,
		PingPressure:       *fields.PingPressure,
		PressureDecay:      *fields.PressureDecay,
		SilenceTimeoutSecs: *fields.SilenceTimeoutSecs,
	}, nil
}
