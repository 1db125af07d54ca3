package metrics

// Label names.
const (
	labelDeviceID   = "device_id"
	labelDeviceType = "device_type"
	labelName       = "name"
	labelRoom       = "room"
	labelState      = "state"
	labelMode       = "mode"
)

// Metric names.
const (
	OnEventsTotal     = "device_on_events_total"
	UsageSecondsTotal = "device_usage_seconds_total"
	DeviceStatus      = "device_status"
	DeviceMetadata    = "device_metadata"

	LightBrightness   = "light_brightness"
	LightColor        = "light_color"
	LightIsDimmable   = "light_is_dimmable"
	LightDynamicColor = "light_dynamic_color"

	ACTemperature = "ac_temperature"
	ACModeStatus  = "ac_mode_status"
	ACSwingStatus = "ac_swing_status"
	ACFanStatus   = "ac_fan_status"

	WaterHeaterTemperature       = "water_heater_temperature"
	WaterHeaterTargetTemperature = "water_heater_target_temperature"
	WaterHeaterIsHeating         = "water_heater_is_heating_status"
	WaterHeaterTimerEnabled      = "water_heater_timer_enabled_status"
	WaterHeaterScheduleInfo      = "water_heater_schedule_info"

	LockStatus       = "lock_status"
	LockAutoLock     = "auto_lock_enabled"
	LockBatteryLevel = "lock_battery_level"

	CurtainStatus   = "curtain_status"
	CurtainPosition = "curtain_position"

	RequestCountTotal     = "request_count_total"
	RequestLatencySeconds = "request_latency_seconds"
)

var descriptions = map[string]string{
	OnEventsTotal:     "Number of times the device switched to an active status",
	UsageSecondsTotal: "Total seconds the device spent in an active status",
	DeviceStatus:      "1 when the device is on, locked or closed",
	DeviceMetadata:    "Device name and room",

	LightBrightness:   "Light brightness (%)",
	LightColor:        "Light color as a decimal RGB value",
	LightIsDimmable:   "Is this light dimmable",
	LightDynamicColor: "Does this light have dynamic color",

	ACTemperature: "Air conditioner target temperature",
	ACModeStatus:  "1 for the active air conditioner mode",
	ACSwingStatus: "1 for the active air conditioner swing setting",
	ACFanStatus:   "1 for the active air conditioner fan speed",

	WaterHeaterTemperature:       "Current water temperature",
	WaterHeaterTargetTemperature: "Target water temperature",
	WaterHeaterIsHeating:         "Water heater heating state",
	WaterHeaterTimerEnabled:      "Water heater timer state",
	WaterHeaterScheduleInfo:      "Water heater schedule",

	LockStatus:       "Locked/unlocked status",
	LockAutoLock:     "Auto-lock enabled",
	LockBatteryLevel: "Battery level",

	CurtainStatus:   "Open/closed status",
	CurtainPosition: "Current position (%)",
}

func help(name string) string {
	if d, ok := descriptions[name]; ok {
		return d
	}
	return name
}
