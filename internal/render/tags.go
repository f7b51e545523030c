package render

import (
	"regexp"
	"strings"
)

// statusTag matches [BOLD RED: text] and [BOLD GREEN: text], with optional ** markers
// just inside the brackets, as emitted by the ORBAT and Sitrep prompts.
var statusTag = regexp.MustCompile(`\[(?:\*\*)?BOLD (RED|GREEN): (.*?)(?:\*\*)?\]`)

const (
	ColorRed   = "#cc3333"
	ColorGreen = "#28a745"
)

// FormatStatusTags replaces status tags with inline colored HTML spans.
// Text without tags is returned unchanged.
func FormatStatusTags(text string) string {
	return statusTag.ReplaceAllStringFunc(text, func(m string) string {
		sub := statusTag.FindStringSubmatch(m)
		color := ColorGreen
		if strings.ToUpper(sub[1]) == "RED" {
			color = ColorRed
		}
		return `<span style="color: ` + color + `; font-weight: bold;">` + sub[2] + `</span>`
	})
}

// markdownStatusTags rewrites status tags as bold markdown with a colored marker,
// for outputs that cannot carry inline HTML.
func markdownStatusTags(text string) string {
	return statusTag.ReplaceAllStringFunc(text, func(m string) string {
		sub := statusTag.FindStringSubmatch(m)
		marker := "🟢"
		if strings.ToUpper(sub[1]) == "RED" {
			marker = "🔴"
		}
		return marker + " **" + sub[2] + "**"
	})
}
