package mqtt

import "github.com/eclipse/paho.golang/paho"

// UserProperty is one MQTT 5 user property: an application-defined
// key/value pair carried in the packet header, outside the payload.
type UserProperty struct {
	Key   string
	Value string
}

// UserProperties is an ordered list of user properties. Keys may repeat.
type UserProperties []UserProperty

// Get returns the value of the first property named key, or "".
func (p UserProperties) Get(key string) string {
	for _, prop := range p {
		if prop.Key == key {
			return prop.Value
		}
	}
	return ""
}

func (p UserProperties) toPaho() paho.UserProperties {
	out := make(paho.UserProperties, len(p))
	for i, prop := range p {
		out[i] = paho.UserProperty{Key: prop.Key, Value: prop.Value}
	}
	return out
}

func fromPaho(in paho.UserProperties) UserProperties {
	if len(in) == 0 {
		return nil
	}
	out := make(UserProperties, len(in))
	for i, prop := range in {
		out[i] = UserProperty{Key: prop.Key, Value: prop.Value}
	}
	return out
}
