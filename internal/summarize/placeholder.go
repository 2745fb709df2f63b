package summarize

import (
	"fmt"
	"strings"
)

// PlaceholderSummary returns a keyword-scan draft when no API key is
// available or every model call failed. It pulls rough signals (diagnoses,
// medications, allergies, procedures) from the first part of the text.
func PlaceholderSummary(combined string, fileCount int) string {
	sample := combined
	if len(sample) > 1200 {
		sample = sample[:1200]
	}
	var lines []string
	for _, l := range strings.Split(sample, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}

	grep := func(keys ...string) []string {
		var hits []string
		for _, line := range lines {
			low := strings.ToLower(line)
			for _, k := range keys {
				if strings.Contains(low, k) {
					hits = append(hits, line)
					break
				}
			}
			if len(hits) == 8 {
				break
			}
		}
		return hits
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Placeholder health summary (no API key detected). Processed %d PDF file(s).\n\n", fileCount)
	b.WriteString("High-level overview:\n- The records include multiple visits and findings. This is only a rough, automated draft.\n")
	writeSection(&b, "Possible diagnoses/assessments noted", grep("diag", "dx", "impression", "assessment"))
	writeSection(&b, "Possible medications mentioned", grep("med", "rx", "prescrib", "dosage"))
	writeSection(&b, "Possible allergies", grep("allerg", "reaction"))
	writeSection(&b, "Possible procedures", grep("procedure", "surgery", "operation"))
	b.WriteString("\nNext steps:\n- Provide an OPENAI_API_KEY to enable an AI-generated health history summary.\n- Verify details directly in the source PDFs before using clinically.")
	return b.String()
}

func writeSection(b *strings.Builder, title string, hits []string) {
	b.WriteString("\n" + title + ":\n")
	if len(hits) == 0 {
		b.WriteString("- (none detected in sample)\n")
		return
	}
	for _, h := range hits {
		b.WriteString("- " + h + "\n")
	}
}
