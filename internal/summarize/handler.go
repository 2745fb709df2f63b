package summarize

import (
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/pkg/response"
)

// maxPromptChars bounds the combined extracted text sent to the model.
const maxPromptChars = 24000

// Handler handles PDF upload and summarization.
type Handler struct {
	client *Client
	logger *zap.Logger
}

// NewHandler creates a summarization handler.
func NewHandler(client *Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{client: client, logger: logger}
}

// Summarize handles POST /summarize: accepts uploaded PDFs, extracts text,
// and returns a concise health summary. Non-PDF files are skipped silently;
// without an API key the placeholder summary is returned.
func (h *Handler) Summarize(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "no files provided; upload one or more PDFs")
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		response.BadRequest(c, "no files provided; upload one or more PDFs")
		return
	}

	var extracted []string
	accepted := 0
	for _, fh := range uploads {
		contentType := fh.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), "pdf") &&
			!strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			continue
		}
		if text := ExtractPDFText(data); text != "" {
			extracted = append(extracted, text)
			accepted++
		}
	}

	if len(extracted) == 0 {
		response.BadRequest(c, "no readable text was extracted from the uploaded PDFs")
		return
	}

	combined := TruncateText(strings.Join(extracted, "\n\n"), maxPromptChars)
	prompt := BuildRecordsPrompt(combined, accepted)

	summary, model, err := h.client.Summarize(c.Request.Context(), prompt)
	if err != nil {
		h.logger.Info("falling back to placeholder summary", zap.Error(err))
		response.OK(c, gin.H{
			"summary": PlaceholderSummary(combined, accepted),
			"model":   "placeholder",
		})
		return
	}
	h.logger.Info("summary generated", zap.String("model", model), zap.Int("files", accepted))
	response.OK(c, gin.H{"summary": summary, "model": model})
}

// BuildRecordsPrompt renders the bounded summarization prompt for extracted
// medical record text.
func BuildRecordsPrompt(combined string, fileCount int) string {
	return fmt.Sprintf(`You are given text extracted from %d PDF medical record(s).
Task: Write a concise, plain-language summary of the patient's health history for a general audience.

Requirements:
- Use short paragraphs and bullet points where helpful.
- Summarize: key diagnoses, past procedures, medications (with doses if present), allergies, relevant labs/imaging, and follow-ups.
- Capture approximate timelines if clear (e.g., "in 2021", "recently").
- Avoid speculation; if unclear or conflicting, say that.
- Do not include personally identifiable information.
- Keep it under 350 words.

Extracted text:
---
%s
---`, fileCount, combined)
}

// BuildTranscriptPrompt renders the prompt used to summarize an archived
// visit transcript.
func BuildTranscriptPrompt(transcript string) string {
	return fmt.Sprintf(`You are given the diarized transcript of a recorded clinical visit.
Task: Write a concise, plain-language summary of the visit for the patient's records.

Requirements:
- Note the reason for the visit, findings, decisions, and follow-ups.
- Attribute statements to speakers only when it matters clinically.
- Avoid speculation; if unclear, say that.
- Keep it under 250 words.

Transcript:
---
%s
---`, transcript)
}
