package services

import (
	"fmt"
	"strings"

	"libu-backend/internal/models"
)

const systemPrompt = `You are "LiBu", a friendly study assistant that helps Korean middle and high school students build media literacy.
- Always answer in Korean.
- Explain at the student's level and keep an encouraging tone.
- Stay accurate and objective.
- Reply with the requested JSON object only.`

const sourcesShape = `"sources": [{"title": "reference title", "snippet": "why it is relevant", "url": ""}]`

// maxContextRunes bounds how much source text is sent with a single request.
const maxContextRunes = 12000

// requiredInput names the input each module cannot run without.
var requiredInput = map[models.Module]string{
	models.ModuleVocabulary: "words",
	models.ModuleSummary:    "userSummary",
	models.ModuleInference:  "interpretation",
	models.ModuleCritical:   "claim",
}

func inputString(inputs map[string]any, key string) string {
	s, _ := inputs[key].(string)
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func buildModulePrompt(module models.Module, req AnalysisRequest) (string, error) {
	if !module.Valid() {
		return "", &InputError{Field: "module", Message: fmt.Sprintf("unknown module %q", module)}
	}
	if field, ok := requiredInput[module]; ok && inputString(req.Inputs, field) == "" {
		return "", &InputError{Field: field, Message: "is required"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Content title: %q\n", req.ContentTitle)

	switch module {
	case models.ModuleVocabulary:
		fmt.Fprintf(&b, "Content excerpt: %q\n\n", truncateRunes(req.ContentText, 500))
		fmt.Fprintf(&b, "The student does not understand this word or expression: %q\n\n", inputString(req.Inputs, "words"))
		b.WriteString(`Respond with this JSON:
{
  "word": "main word",
  "synonyms": ["synonym", "synonym", "synonym"],
  "definition": "dictionary definition",
  "easyExplanation": "one or two sentences a middle school student understands",
  "difficulty": number 0-100 (harder is higher),
  ` + sourcesShape + `,
  "quiz": {"question": "true/false question about the word", "answer": true or false, "explanation": "why"}
}`)

	case models.ModuleSummary:
		fmt.Fprintf(&b, "Full content: %q\n", truncateRunes(req.ContentText, maxContextRunes))
		fmt.Fprintf(&b, "Student summary: %q\n\n", inputString(req.Inputs, "userSummary"))
		b.WriteString(`Compare the student's summary with the content. Respond with this JSON:
{
  "aiSummary": "a 3-4 sentence summary",
  "keyPoints": ["key point", "key point", "key point"],
  "comparison": {
    "common": ["what both summaries share"],
    "missing": ["what the student left out"],
    "potential_issues": ["what could be distorted"]
  },
  "checkList": ["revision checklist item", "item", "item"],
  "gapScore": number 0-100 (a larger gap is higher),
  ` + sourcesShape + `
}`)

	case models.ModuleInference:
		fmt.Fprintf(&b, "Content: %q\n", truncateRunes(req.ContentText, maxContextRunes))
		fmt.Fprintf(&b, "Student interpretation: %q\n\n", inputString(req.Inputs, "interpretation"))
		b.WriteString(`Help the student extend the inference. Respond with this JSON:
{
  "questions": ["question that extends the thinking", "question", "question"],
  "backgroundCards": [{"title": "background topic", "explanation": "plain explanation"}],
  "additionalLinks": [{"title": "further reading", "url": "https://ko.wikipedia.org/..."}],
  "confidenceScore": number 0-100 (better grounded reasoning is higher),
  ` + sourcesShape + `
}`)

	case models.ModuleCritical:
		fmt.Fprintf(&b, "Content: %q\n", truncateRunes(req.ContentText, maxContextRunes))
		fmt.Fprintf(&b, "Student claim: %q\n\n", inputString(req.Inputs, "claim"))
		b.WriteString(`Run a short debate on the claim. Respond with this JSON:
{
  "proArguments": [{"point": "argument for", "source": 1}],
  "conArguments": [{"point": "argument against", "source": 2}],
  "debate": [{"speaker": "pro or con", "message": "turn"}],
  "counterQuestions": ["question that challenges the claim"],
  "diversityScore": number 0-100 (how many perspectives the claim considers),
  ` + sourcesShape + `
}`)

	case models.ModuleIntegration:
		fmt.Fprintf(&b, "Content: %q\n", truncateRunes(req.ContentText, maxContextRunes))
		if kw := inputString(req.Inputs, "keywords"); kw != "" {
			fmt.Fprintf(&b, "Keywords to emphasise: %q\n", kw)
		}
		b.WriteString(`
Organise the key concepts as a mind map. Use 6 to 12 nodes with level 0 (centre), 1 (main branch) or 2 (detail).
Respond with this JSON:
{
  "nodes": [{"id": "1", "label": "central topic", "level": 0, "parent": null}],
  "summary": ["takeaway", "takeaway", "takeaway"],
  ` + sourcesShape + `
}`)

	case models.ModuleVerification:
		fmt.Fprintf(&b, "Content: %q\n", truncateRunes(req.ContentText, maxContextRunes))
		if req.ContentURL != "" {
			fmt.Fprintf(&b, "URL: %q\n", req.ContentURL)
		}
		b.WriteString(`
Rate how trustworthy this information is on four criteria: source clarity, expertise of the author or outlet,
factual accuracy, and whether other sources confirm it. Respond with this JSON:
{
  "scores": {"sourceClarity": 0-100, "expertise": 0-100, "accuracy": 0-100, "expandability": 0-100},
  "explanations": {"sourceClarity": "...", "expertise": "...", "accuracy": "...", "expandability": "..."},
  "totalScore": number 0-100 (mean of the four scores),
  "improvements": ["advice to raise reliability", "advice", "advice"],
  ` + sourcesShape + `
}`)
	}

	return b.String(), nil
}
