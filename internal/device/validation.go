package device

import (
	"fmt"
	"regexp"
	"strings"
)

// Parameter ranges (inclusive).
const (
	minBrightness        = 0
	maxBrightness        = 100
	minTargetTemperature = 49
	maxTargetTemperature = 60
	minACTemperature     = 16
	maxACTemperature     = 30
	minBatteryLevel      = 0
	maxBatteryLevel      = 100
	minPosition          = 0
	maxPosition          = 100
)

var (
	timeOfDayRegex = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)(:[0-5]\d)?$`)
	hexColorRegex  = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)
)

// Allowed enum values, in display order.
var (
	acModes     = []string{"cool", "heat", "fan"}
	acFanSpeeds = []string{"off", "low", "medium", "high"}
	acSwings    = []string{"off", "on", "auto"}
)

// ACModes returns the air conditioner modes.
func ACModes() []string { return append([]string(nil), acModes...) }

// ACFanSpeeds returns the air conditioner fan speeds.
func ACFanSpeeds() []string { return append([]string(nil), acFanSpeeds...) }

// ACSwings returns the air conditioner swing settings.
func ACSwings() []string { return append([]string(nil), acSwings...) }

var (
	defaultStatuses = []string{StatusOn, StatusOff}

	allowedStatuses = map[DeviceType][]string{
		TypeLight:          {StatusOn, StatusOff},
		TypeWaterHeater:    {StatusOn, StatusOff},
		TypeAirConditioner: {StatusOn, StatusOff},
		TypeDoorLock:       {StatusLocked, StatusUnlocked},
		TypeCurtain:        {StatusOpen, StatusClosed},
	}
)

// AllowedStatuses returns the status vocabulary for t. Unrecognised types
// get the generic on/off set.
func AllowedStatuses(t DeviceType) []string {
	if s, ok := allowedStatuses[t]; ok {
		return s
	}
	return defaultStatuses
}

// ValidateStatus checks status against the allowed set for t.
// It returns one message on failure and nil otherwise.
func ValidateStatus(t DeviceType, status string) []string {
	var c checker
	c.enum("status", &status, AllowedStatuses(t), false)
	return c.messages
}

// ValidateParameters checks every present field of p and returns all
// failures. Absent fields are skipped. With isUpdate set, read-only fields
// are rejected.
func ValidateParameters(p Parameters, isUpdate bool) []string {
	if p == nil {
		return nil
	}
	return p.validate(isUpdate)
}

// ValidateDevice checks a device about to be created: required fields, type,
// status and parameters (creation mode). Failures are accumulated into a
// single *ValidationError. Parameters of the wrong variant produce a
// *TypeMismatchError instead.
func ValidateDevice(d *Device) error {
	if d == nil {
		return &ValidationError{Messages: []string{"Device must be provided"}}
	}

	var msgs []string
	if strings.TrimSpace(d.ID) == "" {
		msgs = append(msgs, "Device ID is required")
	}
	switch {
	case d.Type == "":
		msgs = append(msgs, "Device type must be specified")
	case !d.Type.Valid():
		msgs = append(msgs, fmt.Sprintf("Invalid device type '%s'", d.Type))
	}
	if strings.TrimSpace(d.Name) == "" {
		msgs = append(msgs, "Name must be specified")
	}
	if strings.TrimSpace(d.Room) == "" {
		msgs = append(msgs, "Room must be specified")
	}
	if d.Status == "" {
		msgs = append(msgs, "Status must be specified")
	} else {
		msgs = append(msgs, ValidateStatus(d.Type, d.Status)...)
	}

	if d.Parameters == nil {
		msgs = append(msgs, "Parameters must be provided")
	} else {
		if d.Type.Valid() && d.Parameters.DeviceType() != d.Type {
			return &TypeMismatchError{Expected: d.Type, Got: d.Parameters.DeviceType()}
		}
		msgs = append(msgs, d.Parameters.validate(false)...)
	}

	return newValidationError(msgs)
}

// IsValidTimeOfDay reports whether s is "HH:MM" or "HH:MM:SS".
func IsValidTimeOfDay(s string) bool {
	return timeOfDayRegex.MatchString(s)
}

// IsValidHexColor reports whether s is "#RGB" or "#RRGGBB".
func IsValidHexColor(s string) bool {
	return hexColorRegex.MatchString(s)
}

func (p *LightParameters) validate(isUpdate bool) []string {
	var c checker
	c.intRange("brightness", p.Brightness, minBrightness, maxBrightness)
	c.hexColor(p.Color)
	c.readOnly("is_dimmable", p.IsDimmable != nil, isUpdate)
	c.readOnly("dynamic_color", p.DynamicColor != nil, isUpdate)
	return c.messages
}

func (p *WaterHeaterParameters) validate(bool) []string {
	var c checker
	c.intRange("target_temperature", p.TargetTemperature, minTargetTemperature, maxTargetTemperature)
	c.timeOfDay(p.ScheduledOn)
	c.timeOfDay(p.ScheduledOff)
	return c.messages
}

func (p *AirConditionerParameters) validate(bool) []string {
	var c checker
	c.intRange("temperature", p.Temperature, minACTemperature, maxACTemperature)
	c.enum("mode", p.Mode, acModes, true)
	c.enum("fan_speed", p.FanSpeed, acFanSpeeds, true)
	c.enum("swing", p.Swing, acSwings, true)
	return c.messages
}

func (p *DoorLockParameters) validate(bool) []string {
	var c checker
	c.intRange("battery_level", p.BatteryLevel, minBatteryLevel, maxBatteryLevel)
	return c.messages
}

func (p *CurtainParameters) validate(bool) []string {
	var c checker
	c.intRange("position", p.Position, minPosition, maxPosition)
	return c.messages
}

// checker accumulates validation messages. Every check skips absent values.
type checker struct {
	messages []string
}

func (c *checker) add(format string, args ...any) {
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
}

func (c *checker) intRange(field string, v *int, lo, hi int) {
	if v == nil || (*v >= lo && *v <= hi) {
		return
	}
	c.add("'%s' must be between %d and %d, got %d instead.", field, lo, hi, *v)
}

func (c *checker) enum(field string, v *string, allowed []string, foldCase bool) {
	if v == nil {
		return
	}
	for _, a := range allowed {
		if *v == a || (foldCase && strings.EqualFold(*v, a)) {
			return
		}
	}
	c.add("'%s' is not a valid value for %s. Must be one of [%s].", *v, field, strings.Join(allowed, ", "))
}

func (c *checker) timeOfDay(v *string) {
	if v != nil && !IsValidTimeOfDay(*v) {
		c.add("'%s' is not a valid ISO format time string.", *v)
	}
}

func (c *checker) hexColor(v *string) {
	if v != nil && !IsValidHexColor(*v) {
		c.add("'%s' is not a valid hex color string.", *v)
	}
}

func (c *checker) readOnly(field string, present, isUpdate bool) {
	if present && isUpdate {
		c.add("Cannot update read-only parameter '%s'", field)
	}
}
