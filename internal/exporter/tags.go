package exporter

import (
	"sort"
	"strings"
)

const (
	keySeparator   = ";"
	tagSeparator   = "="
	singleTagValue = "single" // value given to tags without "=value"
)

// Tag is one key/value pair embedded in a composite metric key.
type Tag struct {
	Key   string
	Value string
}

// SplitKey splits a composite key "name;tag1=val1;tag2" into its base name
// and the raw tag strings in encounter order.
func SplitKey(key string) (string, []string) {
	parts := strings.Split(key, keySeparator)
	return parts[0], parts[1:]
}

// ParseTag splits a raw tag on the first "=". Bare tags and tags with an
// empty value get the value "single".
func ParseTag(raw string) Tag {
	key, value, _ := strings.Cut(raw, tagSeparator)
	if value == "" {
		value = singleTagValue
	}
	return Tag{Key: key, Value: value}
}

// ParseKey parses a composite key into its base name and tags, keeping the
// tag order of the key.
//
// Example:
//
//	ParseKey("foo;a=1;b") // "foo", [{a 1} {b single}]
func ParseKey(key string) (string, []Tag) {
	name, raw := SplitKey(key)
	return name, parseTags(raw)
}

// parseCounterKey parses a counter key. Tags are sorted so that the same
// logical series always maps to the same accumulator key, whatever order the
// client sent the tags in.
func parseCounterKey(key string) (name string, tags []Tag, accKey string) {
	name, raw := SplitKey(key)
	sorted := append([]string(nil), raw...)
	sort.Strings(sorted)
	return name, parseTags(sorted), strings.Join(append([]string{name}, sorted...), keySeparator)
}

func parseTags(raw []string) []Tag {
	tags := make([]Tag, 0, len(raw))
	for _, r := range raw {
		tags = append(tags, ParseTag(r))
	}
	return tags
}
