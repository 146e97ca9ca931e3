package analysis

import (
	"fmt"

	"cad-lingo/src/glossary"
)

// SystemInstruction frames the model as a construction-industry translator.
const SystemInstruction = `You are a specialized technical translator assistant for a Civil Engineer working in Bridge and Road construction.
Your task is to identify text from screenshots of software interfaces (like AutoCAD, Civil 3D, Revit, SketchUp).

Rules:
1. Extract text from UI elements (menus, tooltips, buttons).
2. Translate the text from English to Vietnamese.
3. Use strict technical terminology used in the Vietnamese construction industry.
4. Format the output strictly as JSON.
5. If a term is very common (like "OK", "Cancel"), translate it standardly.
6. For technical terms, prefer the "Vietnamese (English)" style when it helps clarity, but keep original and translation in separate fields.

Example Context:
- "Offset" -> "Dời song song" (AutoCAD)
- "Alignment" -> "Tuyến" (Civil 3D)
- "Abutment" -> "Mố cầu" (Bridge design)
`

const promptTemplate = `Analyze this image. It is a screenshot from technical engineering software.
1. OCR all visible text.
2. For each distinct text element, translate it to Vietnamese.
3. Check this user-provided dictionary for preferred translations. If the text matches a term here, use this translation:
%s

Return a JSON object with an "items" array. Each item should have:
- "original": The English text found.
- "translated": The Vietnamese translation.
- "isDictionaryMatch": true if it matched the provided list, else false.
`

// BuildPrompt embeds the glossary into the per-request instructions.
func BuildPrompt(entries []glossary.Entry) string {
	return fmt.Sprintf(promptTemplate, glossary.PromptContext(entries))
}

// jsonSchema is the response shape in JSON Schema form, for OpenAI-compatible endpoints.
func jsonSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"original":          map[string]any{"type": "string"},
						"translated":        map[string]any{"type": "string"},
						"isDictionaryMatch": map[string]any{"type": "boolean"},
					},
					"required":             []string{"original", "translated", "isDictionaryMatch"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"items"},
		"additionalProperties": false,
	}
}
