package device

// Merge applies a partial update to a stored device and returns the merged
// device. existing is not modified.
//
// The update's status is checked against existing.Type's vocabulary and its
// parameters in update mode (read-only fields rejected). Every failure is
// reported in one *ValidationError. Parameters of another device type fail
// with a *TypeMismatchError naming existing.Type.
//
// Parameters are overlaid field by field: fields the update omits keep their
// stored values.
func Merge(existing *Device, u *Update) (*Device, error) {
	merged := existing.Clone()
	if u == nil {
		return merged, nil
	}

	if u.Parameters != nil && u.Parameters.DeviceType() != existing.Type {
		return nil, &TypeMismatchError{Expected: existing.Type, Got: u.Parameters.DeviceType()}
	}

	var msgs []string
	if u.Status != nil {
		msgs = append(msgs, ValidateStatus(existing.Type, *u.Status)...)
	}
	msgs = append(msgs, ValidateParameters(u.Parameters, true)...)
	if err := newValidationError(msgs); err != nil {
		return nil, err
	}

	if u.Name != nil {
		merged.Name = *u.Name
	}
	if u.Room != nil {
		merged.Room = *u.Room
	}
	if u.Status != nil {
		merged.Status = *u.Status
	}
	if u.Parameters != nil {
		if merged.Parameters == nil {
			merged.Parameters = NewParameters(existing.Type)
		}
		merged.Parameters.overlay(u.Parameters)
	}

	return merged, nil
}
