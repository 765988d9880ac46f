// Package nlu provides language-model-backed understanding of user queries
// for the literature assistant.
//
// The package defines the abstractions and prompt engineering needed to decide
// whether a free-text question belongs to the medical domain, whether it is too
// ambiguous to search, and which related terms would broaden a literature
// search. Providers (OpenAI, Anthropic) implement a unified Analyzer interface.
//
// Example usage:
//
//	analyzer, err := nlu.NewAnalyzer(cfg)
//	cls, err := analyzer.Classify(ctx, "latest treatments for type 2 diabetes")
//	if cls.IsMedical && !cls.IsAmbiguous {
//		terms, err := analyzer.Expand(ctx, "latest treatments for type 2 diabetes", 8)
//	}
package nlu

import (
	"context"
	"fmt"
	"strings"
)

// Operation labels for per-request metrics.
const (
	operationClassify = "classify"
	operationExpand   = "expand"
)

// Classification is the verdict on a single user query.
type Classification struct {
	// IsMedical reports whether the query concerns medicine, health, or
	// biomedical research.
	IsMedical bool

	// IsAmbiguous reports whether the query is too vague or underspecified
	// to produce a useful literature search.
	IsAmbiguous bool

	// ClarifyingQuestion is a single follow-up question to ask the user.
	// Populated only when IsAmbiguous is true.
	ClarifyingQuestion string

	// Model is the model that produced the verdict.
	Model string
}

// Expansion holds related search terms for a query.
type Expansion struct {
	// Terms are searchable synonyms and related concepts for the query.
	Terms []string

	// Reasoning is the model's explanation of its choices (optional).
	Reasoning string

	// Model is the model that produced the terms.
	Model string
}

// Analyzer defines the interface for language-model query understanding.
//
// Implementations handle provider-specific API calls, response parsing, and
// error handling while conforming to this unified interface.
type Analyzer interface {
	// Classify decides whether the query is medical and whether it needs
	// clarification before searching. The context should be used for
	// cancellation and deadline propagation.
	Classify(ctx context.Context, query string) (*Classification, error)

	// Expand produces up to maxTerms related search terms for the query.
	Expand(ctx context.Context, query string, maxTerms int) (*Expansion, error)

	// Provider returns the name of the provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// classificationResponse is the expected JSON structure for Classify calls.
type classificationResponse struct {
	IsMedical          bool   `json:"is_medical"`
	IsAmbiguous        bool   `json:"is_ambiguous"`
	ClarifyingQuestion string `json:"clarifying_question,omitempty"`
}

// expansionResponse is the expected JSON structure for Expand calls.
type expansionResponse struct {
	Terms     []string `json:"terms"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// BuildClassificationPrompt builds the system and user prompts for deciding
// whether a query is a searchable medical question.
func BuildClassificationPrompt(query string) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You are a triage assistant for a medical literature search service. ")
	sb.WriteString("Given a user's question, decide whether it concerns medicine, health, ")
	sb.WriteString("or biomedical research, and whether it is specific enough to search ")
	sb.WriteString("a database such as PubMed.\n\n")

	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"is_medical": true, "is_ambiguous": false, "clarifying_question": ""}`)
	sb.WriteString("\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("1. is_medical is true only for questions about diseases, treatments, drugs, physiology, public health, or biomedical research.\n")
	sb.WriteString("2. is_ambiguous is true when the question names no identifiable condition, intervention, or population (e.g., \"tell me about medicine\").\n")
	sb.WriteString("3. When is_ambiguous is true, clarifying_question MUST contain one short question asking for the missing detail.\n")
	sb.WriteString("4. When is_ambiguous is false, clarifying_question MUST be empty.\n")

	systemPrompt = sb.String()

	sb.Reset()
	sb.WriteString("Classify the following question.\n")
	sb.WriteString("---\n")
	sb.WriteString(query)
	sb.WriteString("\n---")
	userPrompt = sb.String()

	return systemPrompt, userPrompt
}

// BuildExpansionPrompt builds the system and user prompts for producing
// related search terms for a medical query.
func BuildExpansionPrompt(query string, maxTerms int) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You are a medical search specialist with deep expertise in PubMed ")
	sb.WriteString("query construction. Given a medical question, produce searchable ")
	sb.WriteString("synonyms and related concepts that will broaden retrieval without ")
	sb.WriteString("losing precision.\n\n")

	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"terms": ["term1", "term2"], "reasoning": "Brief explanation of term choices"}`)
	sb.WriteString("\n\n")

	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Prefer established scientific nomenclature and MeSH-style terms.\n")
	sb.WriteString("2. Include both abbreviated forms (e.g., \"T2DM\") and expanded forms (e.g., \"type 2 diabetes mellitus\") when relevant.\n")
	sb.WriteString("3. Avoid overly broad terms (e.g., \"disease\", \"health\", \"therapy\").\n")
	sb.WriteString("4. Return lowercase terms; multi-word phrases are allowed.\n")

	systemPrompt = sb.String()

	sb.Reset()
	sb.WriteString("Produce related search terms for the following question. ")
	sb.WriteString(fmt.Sprintf("Return at most %d terms.\n", maxTerms))
	sb.WriteString("---\n")
	sb.WriteString(query)
	sb.WriteString("\n---")
	userPrompt = sb.String()

	return systemPrompt, userPrompt
}
