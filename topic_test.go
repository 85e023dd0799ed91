package dispatch

import "testing"

func TestParseShareTopic(t *testing.T) {
	cases := []struct {
		filter    string
		wantOK    bool
		wantGroup string
		wantTopic string
	}{
		{"$share/g1/sensors/temperature", true, "g1", "sensors/temperature"},
		{"$share/g1/topic", true, "g1", "topic"},
		{"sensors/temperature", false, "", ""},
		{"$share/g1/", false, "", ""},
		{"$share//topic", false, "", ""},
		{"$share/g+/topic", false, "", ""},
	}

	for _, c := range cases {
		got, ok := ParseShareTopic(c.filter)
		if ok != c.wantOK {
			t.Errorf("ParseShareTopic(%q) ok = %v, want %v", c.filter, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if got.Group != c.wantGroup || got.Topic != c.wantTopic {
			t.Errorf("ParseShareTopic(%q) = %+v, want {%s %s}", c.filter, got, c.wantGroup, c.wantTopic)
		}
	}
}

func TestValidateTopicFilter(t *testing.T) {
	valid := []string{"sensors/+/temperature", "sensors/#", "a/b/c", "+"}
	for _, f := range valid {
		if err := ValidateTopicFilter(f); err != nil {
			t.Errorf("ValidateTopicFilter(%q) = %v, want nil", f, err)
		}
	}

	invalid := []string{"", "sensors/+temp", "a/#/b", "sensors/#more"}
	for _, f := range invalid {
		if err := ValidateTopicFilter(f); err == nil {
			t.Errorf("ValidateTopicFilter(%q) = nil, want error", f)
		}
	}
}
