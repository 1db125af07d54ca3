package mqtt

import "strings"

// Device topic methods.
const (
	MethodPost   = "post"
	MethodUpdate = "update"
	MethodDelete = "delete"
)

// sharePrefix marks an MQTT 5 / Mosquitto shared subscription.
const sharePrefix = "$share"

// DeviceTopic returns the topic a device mutation is published on.
//
//	mqtt.DeviceTopic("home/devices", "light01", mqtt.MethodUpdate)
//	// Returns: "home/devices/light01/update"
func DeviceTopic(prefix, deviceID, method string) string {
	return prefix + "/" + deviceID + "/" + method
}

// DeviceWildcard matches every device topic under prefix.
func DeviceWildcard(prefix string) string {
	return prefix + "/#"
}

// SharedSubscription wraps a topic filter so the broker load-balances its
// messages across the members of group instead of copying them to each.
func SharedSubscription(group, filter string) string {
	return sharePrefix + "/" + group + "/" + filter
}

// SplitTopic splits a concrete (non-wildcard) topic into its levels.
func SplitTopic(topic string) []string {
	return strings.Split(topic, "/")
}

// MatchFilter reports whether topic matches filter. A $share/<group>/
// prefix on filter is ignored, "+" matches exactly one level and a
// trailing "#" matches the parent level and everything below it.
//
//	mqtt.MatchFilter("$share/backend/home/devices/#", "home/devices/light01/post") // true
//	mqtt.MatchFilter("home/+/status", "home/a/b/status")                            // false
func MatchFilter(filter, topic string) bool {
	if rest, ok := strings.CutPrefix(filter, sharePrefix+"/"); ok {
		_, filter, ok = strings.Cut(rest, "/")
		if !ok {
			return false
		}
	}

	f := strings.Split(filter, "/")
	t := SplitTopic(topic)
	// Wildcards never match a leading $ level.
	if strings.HasPrefix(topic, "$") && (f[0] == "+" || f[0] == "#") {
		return false
	}

	for i, level := range f {
		switch {
		case level == "#":
			return i == len(f)-1
		case i >= len(t):
			return false
		case level != "+" && level != t[i]:
			return false
		}
	}
	return len(f) == len(t)
}
