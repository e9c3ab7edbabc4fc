package vision

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"skincare-backend/internal/skin"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

var requiredFields = []string{"face_detected", "skin_type", "concerns", "severity", "notes"}

// ParseResponse extracts and schema-checks a profile from raw model text.
// It performs no defaulting; Sanitize handles policy rewrites.
func ParseResponse(raw string) (skin.Profile, error) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return skin.Profile{}, &ParseError{Reason: "no JSON object found in response"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(match), &fields); err != nil {
		return skin.Profile{}, &SchemaError{Reason: "invalid JSON: " + err.Error()}
	}

	var (
		profile skin.Profile
		bad     []string
		reasons []string
	)
	fail := func(field, reason string) {
		bad = append(bad, field)
		reasons = append(reasons, field+": "+reason)
	}

	for _, name := range requiredFields {
		value, ok := fields[name]
		if !ok || isNull(value) {
			fail(name, "missing")
			continue
		}
		switch name {
		case "face_detected":
			if err := json.Unmarshal(value, &profile.FaceDetected); err != nil {
				fail(name, "must be a boolean")
			}
		case "skin_type":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				fail(name, "must be a string")
				continue
			}
			t, err := skin.ParseSkinType(s)
			if err != nil {
				fail(name, err.Error())
				continue
			}
			profile.SkinType = t
		case "concerns":
			var list []string
			if err := json.Unmarshal(value, &list); err != nil {
				fail(name, "must be a list of strings")
				continue
			}
			concerns := make([]skin.Concern, 0, len(list))
			var unknown []string
			for _, item := range list {
				c, err := skin.ParseConcern(item)
				if err != nil {
					unknown = append(unknown, item)
					continue
				}
				concerns = append(concerns, c)
			}
			if len(unknown) > 0 {
				fail(name, "unknown values "+strings.Join(unknown, ", "))
				continue
			}
			profile.Concerns = concerns
		case "severity":
			var m map[string]string
			if err := json.Unmarshal(value, &m); err != nil {
				fail(name, "must be an object of concern to level")
				continue
			}
			severity := make(map[skin.Concern]skin.Severity, len(m))
			var invalid []string
			for k, v := range m {
				c, err := skin.ParseConcern(k)
				if err != nil {
					invalid = append(invalid, k)
					continue
				}
				s, err := skin.ParseSeverity(v)
				if err != nil {
					invalid = append(invalid, k+"="+v)
					continue
				}
				severity[c] = s
			}
			if len(invalid) > 0 {
				sort.Strings(invalid)
				fail(name, "invalid entries "+strings.Join(invalid, ", "))
				continue
			}
			profile.Severity = severity
		case "notes":
			if err := json.Unmarshal(value, &profile.Notes); err != nil {
				fail(name, "must be a string")
			}
		}
	}

	if len(bad) > 0 {
		return skin.Profile{}, &SchemaError{Fields: bad, Reason: strings.Join(reasons, "; ")}
	}
	return profile, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
