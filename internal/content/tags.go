package content

import "strings"

const tagSeparator = ", "

// NormalizeTags splits a comma separated list, trims every entry and drops
// the empty ones. The result is joined with ", ".
func NormalizeTags(raw string) string {
	return strings.Join(SplitTags(raw), tagSeparator)
}

func SplitTags(raw string) []string {
	tags := []string{}
	for tag := range strings.SplitSeq(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
