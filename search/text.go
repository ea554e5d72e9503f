package search

const (
	// PreviewChars is the number of body characters kept in a preview.
	PreviewChars = 500
	// PreviewMarker is appended to a preview of a longer body.
	PreviewMarker = "..."

	displayDateChars = 10
	noDate           = "N/A"
)

// preview returns the first PreviewChars characters of body, marked when
// anything was cut.
func preview(body string) string {
	count := 0
	for i := range body {
		if count == PreviewChars {
			return body[:i] + PreviewMarker
		}
		count++
	}
	return body
}

// displayDate returns the date part of an ISO-8601 timestamp. Anything
// shorter than a date is shown as "N/A".
func displayDate(createdAt string) string {
	runes := []rune(createdAt)
	if len(runes) < displayDateChars {
		return noDate
	}
	return string(runes[:displayDateChars])
}
