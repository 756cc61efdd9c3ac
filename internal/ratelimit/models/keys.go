package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so an identifier containing ':' cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// BucketKey returns the storage key for class and identifier.
func BucketKey(class EndpointClass, identifier string) string {
	return "ratelimit:" + string(class) + ":" + SanitizeKeySegment(identifier)
}
