package codebook

// RetentionPolicy maps intents to TTLs in days. Volatile intents (news,
// prices) age out quickly; stable ones keep their precedent for months.
type RetentionPolicy struct {
	DefaultTTLDays int
	IntentTTLDays  map[string]int
}

// DefaultRetentionPolicy returns the standard intent TTL table.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		DefaultTTLDays: 30,
		IntentTTLDays: map[string]int{
			"news":      1,
			"price":     3,
			"market":    3,
			"technical": 30,
			"analysis":  30,
			"chat":      180,
		},
	}
}

// TTLDays resolves the TTL for an intent.
func (p RetentionPolicy) TTLDays(intent string) int {
	if ttl, ok := p.IntentTTLDays[normalizeIntent(intent)]; ok {
		return ttl
	}
	if p.DefaultTTLDays > 0 {
		return p.DefaultTTLDays
	}
	return 30
}
