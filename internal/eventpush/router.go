package eventpush

import "strings"

func matchTargets(targets []Target, evType string) []Target {
	if len(targets) == 0 {
		return nil
	}
	out := make([]Target, 0, len(targets))
	for _, target := range targets {
		if !target.Enabled {
			continue
		}
		if !eventAllowed(target.EventAllowlist, evType) {
			continue
		}
		out = append(out, target)
	}
	return out
}

// An empty allowlist accepts every event.
func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	evType = strings.ToLower(strings.TrimSpace(evType))
	for _, v := range allowlist {
		if v != "" && strings.ToLower(strings.TrimSpace(v)) == evType {
			return true
		}
	}
	return false
}
