package github

import "strings"

// parseLink parses an RFC 8288 Link header into a map of rel to URL.
//
//	<https://api.github.com/search/code?page=2>; rel="next", <...>; rel="last"
func parseLink(header string) map[string]string {
	links := make(map[string]string)
	for _, part := range splitLinkValues(header) {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "<") {
			continue
		}
		end := strings.IndexByte(part, '>')
		if end < 0 {
			continue
		}
		target := part[1:end]

		for _, param := range strings.Split(part[end+1:], ";")[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
				continue
			}
			value = strings.Trim(strings.TrimSpace(value), `"`)
			for _, rel := range strings.Fields(value) {
				if _, seen := links[rel]; !seen {
					links[rel] = target
				}
			}
		}
	}
	return links
}

// splitLinkValues splits a Link header on the commas between link values.
// Commas inside <...> belong to the URL.
func splitLinkValues(header string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, header[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, header[start:])
}
