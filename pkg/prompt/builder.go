// Package prompt builds correction-service requests from a processing mode,
// an optional word list, and optional user instructions.
package prompt

import (
	"fmt"
	"strings"

	"transcriptcleaner/pkg/ai"
	"transcriptcleaner/pkg/domain"
	"transcriptcleaner/pkg/pricing"
)

const proofreadingTemplate = "You are an AI specialized in typo and spelling correction. " +
	"Do NOT summarize, add, delete, rephrase, reformat, change tone, modify content, " +
	"merge/split paragraphs, change word order, or perform any other edits. " +
	"Only correct typos and spelling mistakes based on the provided correction list. " +
	"Do not modify any parts not listed in the correction list. " +
	"Human final review and correction is mandatory."

const grammarTemplate = "You are an AI that corrects Japanese text to be natural and grammatically correct.\n" +
	"Follow these instructions to modify the provided text:\n" +
	"1. Fix grammatical errors.\n" +
	"2. Correct unnatural expressions to more natural Japanese.\n" +
	"3. Fix typos and spelling mistakes."

const grammarTemplateTail = "\n4. Preserve the original meaning and main information, " +
	"do not add or delete content arbitrarily.\n" +
	"5. Match the writing style of the original text."

const summaryTemplate = "You are an AI that summarizes provided Japanese text.\n" +
	"Follow these instructions to summarize the text:\n" +
	"1. Understand the main topics and conclusions of the entire text.\n" +
	"2. Extract important information and omit redundant parts and details.\n" +
	"3. Create a summary that accurately reflects the intent of the original text."

const customTemplate = "You are a text processing AI. Follow the user's instructions."

// Build constructs the request for one correction attempt. The mode selects
// a fixed system template; proofreading and grammar append the word pairs as
// explicit replacement directives in the order supplied. Custom instructions
// are appended after the template and never replace it. Unrecognized models
// are normalized to the default identifier.
func Build(mode domain.ProcessingMode, customInstructions, sourceText string, pairs []domain.WordPair, model string) ai.Request {
	customInstructions = strings.TrimSpace(customInstructions)
	var b strings.Builder

	switch mode {
	case domain.ModeProofreading:
		b.WriteString(proofreadingTemplate)
		if len(pairs) > 0 {
			b.WriteString("\n\nApply the following typo corrections with priority:\n")
			writePairDirectives(&b, pairs)
		}
		if customInstructions != "" {
			b.WriteString("\n\nUser note: " + customInstructions)
		}
	case domain.ModeGrammar:
		b.WriteString(grammarTemplate)
		if len(pairs) > 0 {
			b.WriteString("\nEspecially, prioritize correcting words from this list:\n")
			writePairDirectives(&b, pairs)
		}
		b.WriteString(grammarTemplateTail)
		if customInstructions != "" {
			b.WriteString("\n\nUser note: " + customInstructions)
		}
	case domain.ModeSummary:
		b.WriteString(summaryTemplate)
		if customInstructions != "" {
			b.WriteString("\n\nSpecific user instructions: " + customInstructions)
		}
	default:
		b.WriteString(customTemplate)
		if customInstructions != "" {
			b.WriteString("\n\nUser instructions: " + customInstructions)
		}
	}

	return ai.Request{
		Model:              pricing.Normalize(model),
		SystemInstructions: strings.TrimSpace(b.String()),
		UserText:           sourceText,
	}
}

func writePairDirectives(b *strings.Builder, pairs []domain.WordPair) {
	for _, p := range pairs {
		fmt.Fprintf(b, "'%s' → '%s'\n", p.Incorrect, p.Correct)
	}
}
