package summarize

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls plain text from a PDF byte buffer, concatenating all
// pages. Pages that fail to extract are skipped so one bad page does not
// sink the whole upload. An unreadable document yields "".
func ExtractPDFText(data []byte) string {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	var texts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n\n")
}

// TruncateText bounds text for model input, keeping the head and a short
// tail around a truncation marker.
func TruncateText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	head := text[:maxChars-1000]
	tail := text[len(text)-1000:]
	return head + "\n\n[...truncated...]\n\n" + tail
}
