package device

// Parameters is the type-specific settings of a device. Exactly one variant
// exists per DeviceType; the set of implementations is closed to this package.
//
// Every field of every variant is a pointer so that the same shape serves a
// full device and a partial update: nil means absent.
type Parameters interface {
	// DeviceType returns the device type this variant belongs to.
	DeviceType() DeviceType

	validate(isUpdate bool) []string
	overlay(src Parameters)
	applyDefaults()
	clone() Parameters
}

// NewParameters returns an empty parameter variant for t, or nil when t is
// not a supported type.
func NewParameters(t DeviceType) Parameters {
	switch t {
	case TypeLight:
		return &LightParameters{}
	case TypeWaterHeater:
		return &WaterHeaterParameters{}
	case TypeAirConditioner:
		return &AirConditionerParameters{}
	case TypeDoorLock:
		return &DoorLockParameters{}
	case TypeCurtain:
		return &CurtainParameters{}
	default:
		return nil
	}
}

// DefaultParameters returns the parameters a newly created device of type t
// receives for any field it omits.
func DefaultParameters(t DeviceType) Parameters {
	p := NewParameters(t)
	if p != nil {
		p.applyDefaults()
	}
	return p
}

// parameterFields lists the wire field names of each variant.
var parameterFields = map[DeviceType][]string{
	TypeLight:          {"brightness", "color", "is_dimmable", "dynamic_color"},
	TypeWaterHeater:    {"temperature", "target_temperature", "is_heating", "timer_enabled", "scheduled_on", "scheduled_off"},
	TypeAirConditioner: {"temperature", "mode", "fan_speed", "swing"},
	TypeDoorLock:       {"auto_lock_enabled", "battery_level"},
	TypeCurtain:        {"position"},
}

// Type defaults applied at creation.
const (
	defaultWaterHeaterTemperature = 60
	defaultWaterHeaterTarget      = 60
	defaultScheduledOn            = "06:30"
	defaultScheduledOff           = "08:00"
	defaultACTemperature          = 24
	defaultACMode                 = "cool"
	defaultACFanSpeed             = "low"
	defaultACSwing                = "off"
	defaultBrightness             = 80
	defaultColor                  = "#FFFFFF"
	defaultBatteryLevel           = 100
	defaultPosition               = 100
)

// LightParameters holds light settings. IsDimmable and DynamicColor are
// fixed at creation.
type LightParameters struct {
	Brightness   *int    `json:"brightness,omitempty"`
	Color        *string `json:"color,omitempty"`
	IsDimmable   *bool   `json:"is_dimmable,omitempty"`
	DynamicColor *bool   `json:"dynamic_color,omitempty"`
}

// DeviceType implements Parameters.
func (*LightParameters) DeviceType() DeviceType { return TypeLight }

func (p *LightParameters) overlay(src Parameters) {
	s := src.(*LightParameters)
	overlayField(&p.Brightness, s.Brightness)
	overlayField(&p.Color, s.Color)
	overlayField(&p.IsDimmable, s.IsDimmable)
	overlayField(&p.DynamicColor, s.DynamicColor)
}

func (p *LightParameters) applyDefaults() {
	defaultField(&p.Brightness, defaultBrightness)
	defaultField(&p.Color, defaultColor)
	defaultField(&p.IsDimmable, false)
	defaultField(&p.DynamicColor, false)
}

func (p *LightParameters) clone() Parameters {
	return &LightParameters{
		Brightness:   cloneField(p.Brightness),
		Color:        cloneField(p.Color),
		IsDimmable:   cloneField(p.IsDimmable),
		DynamicColor: cloneField(p.DynamicColor),
	}
}

// WaterHeaterParameters holds water heater settings. Temperature is the
// current reading and carries no range.
type WaterHeaterParameters struct {
	Temperature       *int    `json:"temperature,omitempty"`
	TargetTemperature *int    `json:"target_temperature,omitempty"`
	IsHeating         *bool   `json:"is_heating,omitempty"`
	TimerEnabled      *bool   `json:"timer_enabled,omitempty"`
	ScheduledOn       *string `json:"scheduled_on,omitempty"`
	ScheduledOff      *string `json:"scheduled_off,omitempty"`
}

// DeviceType implements Parameters.
func (*WaterHeaterParameters) DeviceType() DeviceType { return TypeWaterHeater }

func (p *WaterHeaterParameters) overlay(src Parameters) {
	s := src.(*WaterHeaterParameters)
	overlayField(&p.Temperature, s.Temperature)
	overlayField(&p.TargetTemperature, s.TargetTemperature)
	overlayField(&p.IsHeating, s.IsHeating)
	overlayField(&p.TimerEnabled, s.TimerEnabled)
	overlayField(&p.ScheduledOn, s.ScheduledOn)
	overlayField(&p.ScheduledOff, s.ScheduledOff)
}

func (p *WaterHeaterParameters) applyDefaults() {
	defaultField(&p.Temperature, defaultWaterHeaterTemperature)
	defaultField(&p.TargetTemperature, defaultWaterHeaterTarget)
	defaultField(&p.IsHeating, false)
	defaultField(&p.TimerEnabled, false)
	defaultField(&p.ScheduledOn, defaultScheduledOn)
	defaultField(&p.ScheduledOff, defaultScheduledOff)
}

func (p *WaterHeaterParameters) clone() Parameters {
	return &WaterHeaterParameters{
		Temperature:       cloneField(p.Temperature),
		TargetTemperature: cloneField(p.TargetTemperature),
		IsHeating:         cloneField(p.IsHeating),
		TimerEnabled:      cloneField(p.TimerEnabled),
		ScheduledOn:       cloneField(p.ScheduledOn),
		ScheduledOff:      cloneField(p.ScheduledOff),
	}
}

// AirConditionerParameters holds air conditioner settings.
type AirConditionerParameters struct {
	Temperature *int    `json:"temperature,omitempty"`
	Mode        *string `json:"mode,omitempty"`
	FanSpeed    *string `json:"fan_speed,omitempty"`
	Swing       *string `json:"swing,omitempty"`
}

// DeviceType implements Parameters.
func (*AirConditionerParameters) DeviceType() DeviceType { return TypeAirConditioner }

func (p *AirConditionerParameters) overlay(src Parameters) {
	s := src.(*AirConditionerParameters)
	overlayField(&p.Temperature, s.Temperature)
	overlayField(&p.Mode, s.Mode)
	overlayField(&p.FanSpeed, s.FanSpeed)
	overlayField(&p.Swing, s.Swing)
}

func (p *AirConditionerParameters) applyDefaults() {
	defaultField(&p.Temperature, defaultACTemperature)
	defaultField(&p.Mode, defaultACMode)
	defaultField(&p.FanSpeed, defaultACFanSpeed)
	defaultField(&p.Swing, defaultACSwing)
}

func (p *AirConditionerParameters) clone() Parameters {
	return &AirConditionerParameters{
		Temperature: cloneField(p.Temperature),
		Mode:        cloneField(p.Mode),
		FanSpeed:    cloneField(p.FanSpeed),
		Swing:       cloneField(p.Swing),
	}
}

// DoorLockParameters holds door lock settings.
type DoorLockParameters struct {
	AutoLockEnabled *bool `json:"auto_lock_enabled,omitempty"`
	BatteryLevel    *int  `json:"battery_level,omitempty"`
}

// DeviceType implements Parameters.
func (*DoorLockParameters) DeviceType() DeviceType { return TypeDoorLock }

func (p *DoorLockParameters) overlay(src Parameters) {
	s := src.(*DoorLockParameters)
	overlayField(&p.AutoLockEnabled, s.AutoLockEnabled)
	overlayField(&p.BatteryLevel, s.BatteryLevel)
}

func (p *DoorLockParameters) applyDefaults() {
	defaultField(&p.AutoLockEnabled, false)
	defaultField(&p.BatteryLevel, defaultBatteryLevel)
}

func (p *DoorLockParameters) clone() Parameters {
	return &DoorLockParameters{
		AutoLockEnabled: cloneField(p.AutoLockEnabled),
		BatteryLevel:    cloneField(p.BatteryLevel),
	}
}

// CurtainParameters holds curtain settings.
type CurtainParameters struct {
	Position *int `json:"position,omitempty"`
}

// DeviceType implements Parameters.
func (*CurtainParameters) DeviceType() DeviceType { return TypeCurtain }

func (p *CurtainParameters) overlay(src Parameters) {
	overlayField(&p.Position, src.(*CurtainParameters).Position)
}

func (p *CurtainParameters) applyDefaults() {
	defaultField(&p.Position, defaultPosition)
}

func (p *CurtainParameters) clone() Parameters {
	return &CurtainParameters{Position: cloneField(p.Position)}
}

// overlayField copies src into *dst when src is present.
func overlayField[T any](dst **T, src *T) {
	if src != nil {
		*dst = ptr(*src)
	}
}

func defaultField[T any](dst **T, v T) {
	if *dst == nil {
		*dst = ptr(v)
	}
}

func cloneField[T any](v *T) *T {
	if v == nil {
		return nil
	}
	return ptr(*v)
}
