package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DecodeDevice parses a device payload (API create request or bus "post"
// message). The parameter variant is chosen by the payload's type field.
//
// Field type problems are collected into a *ValidationError. Parameters
// whose keys belong to another device type yield a *TypeMismatchError.
// Range and vocabulary checks are left to ValidateDevice.
func DecodeDevice(data []byte) (*Device, error) {
	top, err := decodeObject(data)
	if err != nil {
		return nil, &ValidationError{Messages: []string{"Device payload must be a JSON object"}}
	}

	fd := &fieldDecoder{fields: top}
	d := &Device{
		ID:     deref(fd.str("id")),
		Type:   DeviceType(deref(fd.str("type"))),
		Name:   deref(fd.str("name")),
		Room:   deref(fd.str("room")),
		Status: deref(fd.str("status")),
	}

	switch {
	case d.Type == "":
		fd.fail("Device type must be specified")
	case !d.Type.Valid():
		fd.fail("Invalid device type '%s'", d.Type)
	default:
		if raw, ok := top["parameters"]; ok && !isNull(raw) {
			p, err := DecodeParameters(d.Type, raw)
			if err := fd.merge(err); err != nil {
				return nil, err
			}
			d.Parameters = p
		}
	}

	if err := newValidationError(fd.errs); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeUpdate parses a partial update for a device of type t. The caller
// supplies t because updates carry no type of their own.
func DecodeUpdate(data []byte, t DeviceType) (*Update, error) {
	top, err := decodeObject(data)
	if err != nil {
		return nil, &ValidationError{Messages: []string{"Update payload must be a JSON object"}}
	}

	fd := &fieldDecoder{fields: top}
	u := &Update{
		Name:   fd.str("name"),
		Room:   fd.str("room"),
		Status: fd.str("status"),
	}

	if raw, ok := top["parameters"]; ok && !isNull(raw) {
		p, err := DecodeParameters(t, raw)
		if err := fd.merge(err); err != nil {
			return nil, err
		}
		u.Parameters = p
	}

	if err := newValidationError(fd.errs); err != nil {
		return nil, err
	}
	return u, nil
}

// DecodeParameters parses a parameters object for a device of type t.
//
// When the keys are not all fields of t but do all belong to another type,
// that type's variant is returned so the caller can report the mismatch.
// Keys that fit no type at all yield a *TypeMismatchError naming t.
func DecodeParameters(t DeviceType, data json.RawMessage) (Parameters, error) {
	if !t.Valid() {
		return nil, &ValidationError{Messages: []string{fmt.Sprintf("Invalid device type '%s'", t)}}
	}

	fields, err := decodeObject(data)
	if err != nil {
		return nil, &ValidationError{Messages: []string{"Parameters must be a JSON object"}}
	}

	variant := resolveVariant(t, fields)
	if variant == "" {
		return nil, &TypeMismatchError{Expected: t}
	}

	fd := &fieldDecoder{fields: fields}
	var p Parameters
	switch variant {
	case TypeLight:
		p = &LightParameters{
			Brightness:   fd.integer("brightness"),
			Color:        fd.str("color"),
			IsDimmable:   fd.boolean("is_dimmable"),
			DynamicColor: fd.boolean("dynamic_color"),
		}
	case TypeWaterHeater:
		p = &WaterHeaterParameters{
			Temperature:       fd.integer("temperature"),
			TargetTemperature: fd.integer("target_temperature"),
			IsHeating:         fd.boolean("is_heating"),
			TimerEnabled:      fd.boolean("timer_enabled"),
			ScheduledOn:       fd.str("scheduled_on"),
			ScheduledOff:      fd.str("scheduled_off"),
		}
	case TypeAirConditioner:
		p = &AirConditionerParameters{
			Temperature: fd.integer("temperature"),
			Mode:        lower(fd.str("mode")),
			FanSpeed:    lower(fd.str("fan_speed")),
			Swing:       lower(fd.str("swing")),
		}
	case TypeDoorLock:
		p = &DoorLockParameters{
			AutoLockEnabled: fd.boolean("auto_lock_enabled"),
			BatteryLevel:    fd.integer("battery_level"),
		}
	case TypeCurtain:
		p = &CurtainParameters{
			Position: fd.integer("position"),
		}
	}

	if err := newValidationError(fd.errs); err != nil {
		return nil, err
	}
	return p, nil
}

// resolveVariant picks the device type whose field set covers every key.
// The expected type wins; otherwise the first covering type in
// AllDeviceTypes order. Returns "" when no type covers the keys.
func resolveVariant(expected DeviceType, fields map[string]json.RawMessage) DeviceType {
	if covers(expected, fields) {
		return expected
	}
	for _, t := range AllDeviceTypes() {
		if t != expected && covers(t, fields) {
			return t
		}
	}
	return ""
}

func covers(t DeviceType, fields map[string]json.RawMessage) bool {
	known := parameterFields[t]
	for k := range fields {
		found := false
		for _, f := range known {
			if f == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// fieldDecoder reads typed fields out of a JSON object and collects
// type errors instead of stopping at the first.
type fieldDecoder struct {
	fields map[string]json.RawMessage
	errs   []string
}

func (d *fieldDecoder) fail(format string, args ...any) {
	d.errs = append(d.errs, fmt.Sprintf(format, args...))
}

// merge folds validation messages from a nested decode into d and returns
// any other error unchanged.
func (d *fieldDecoder) merge(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		d.errs = append(d.errs, ve.Messages...)
		return nil
	}
	return err
}

// value decodes a field to its generic JSON value. Absent and null fields
// report false.
func (d *fieldDecoder) value(name string) (any, bool) {
	raw, ok := d.fields[name]
	if !ok {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// integer accepts JSON integers and numeric strings.
func (d *fieldDecoder) integer(name string) *int {
	v, ok := d.value(name)
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.Atoi(x.String()); err == nil {
			return &n
		}
		d.fail("'%s' must be a numeric string, got '%s' instead.", name, x)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return &n
		}
		d.fail("'%s' must be a numeric string, got '%s' instead.", name, x)
	default:
		d.fail("'%s' must be an Integer, got %s instead.", name, kindOf(v))
	}
	return nil
}

func (d *fieldDecoder) boolean(name string) *bool {
	v, ok := d.value(name)
	if !ok {
		return nil
	}
	if b, isBool := v.(bool); isBool {
		return &b
	}
	d.fail("'%s' must be a Boolean, got %s instead.", name, kindOf(v))
	return nil
}

func (d *fieldDecoder) str(name string) *string {
	v, ok := d.value(name)
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		return &s
	}
	d.fail("'%s' must be a String, got %s instead.", name, kindOf(v))
	return nil
}

// kindOf names the JSON kind of a decoded value.
func kindOf(v any) string {
	switch v.(type) {
	case bool:
		return "Boolean"
	case string:
		return "String"
	case json.Number:
		return "Number"
	case []any:
		return "Array"
	default:
		return "Object"
	}
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("null object")
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func lower(s *string) *string {
	if s == nil {
		return nil
	}
	return ptr(strings.ToLower(*s))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
