package digestbus

import "github.com/russross/blackfriday/v2"

// RenderMarkdown converts the summarizer's markdown into an HTML fragment
// for the email body. It never fails: malformed markup degrades to whatever
// blackfriday makes of it.
func RenderMarkdown(md string) string {
	return string(blackfriday.Run([]byte(md)))
}
