package dispatch

import (
	"fmt"
	"strings"
)

// ShareFilter is a parsed $share/{group}/{topic} subscription filter
// (GLOSSARY "Shared subscription").
type ShareFilter struct {
	Group string
	Topic string
}

// ParseShareTopic parses a subscription filter of the form
// "$share/{group}/{topic}". It returns ok=false for any filter that is
// not a shared subscription (the exclusive path reuses the same QoS
// machines per spec §1 but is otherwise out of scope here).
func ParseShareTopic(filter string) (ShareFilter, bool) {
	const prefix = "$share/"
	if !strings.HasPrefix(filter, prefix) {
		return ShareFilter{}, false
	}

	rest := filter[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx <= 0 || idx == len(rest)-1 {
		return ShareFilter{}, false
	}

	group := rest[:idx]
	topic := rest[idx+1:]
	if strings.ContainsAny(group, "+#") {
		return ShareFilter{}, false
	}
	return ShareFilter{Group: group, Topic: topic}, true
}

// ValidateTopicFilter rejects a topic filter with malformed wildcard
// placement, per the same MQTT-4.7.1 rules the teacher enforces client
// side. '+' must occupy an entire level; '#' must occupy an entire
// level and be the last one.
func ValidateTopicFilter(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic filter cannot be empty")
	}

	parts := strings.Split(topic, "/")
	for i, part := range parts {
		if strings.Contains(part, "+") && part != "+" {
			return fmt.Errorf("single-level wildcard '+' must occupy entire topic level")
		}
		if strings.Contains(part, "#") {
			if part != "#" {
				return fmt.Errorf("multi-level wildcard '#' must occupy entire topic level")
			}
			if i != len(parts)-1 {
				return fmt.Errorf("multi-level wildcard '#' must be the last level")
			}
		}
	}
	return nil
}
