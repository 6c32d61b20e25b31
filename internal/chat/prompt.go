package chat

import (
	"fmt"
	"strings"
)

// The generation and repair prompts are a contract with the backend and are
// kept byte-for-byte, indentation included.
const (
	generateTemplate = `Write unit tests for the following function. Make sure that:
      1. The tests fully correspond to the function's logic and behavior.
      2. There is nothing in the tests that does not stem from the function's code.
      3. Correct data, incorrect data, edge cases, and exceptional situations are covered.
      
      Function code:
      %s
      
      Requirements:
      - Language: %s.
      - Testing framework: %s.
      The answer should contain only valid test code without comments or explanations,
      but don't import this function and don't generate code of this function in answer also write code only without comments.
      ;`

	fixTemplate = `Fix this unit test function: %s
      
      The answer should contain only valid test code without comments or explanations,
      but don't import this function and don't generate code of this function in answer also write code only without comments.`
)

// GeneratePrompt renders the test-generation prompt.
func GeneratePrompt(sourceCode, language, framework string) string {
	return fmt.Sprintf(generateTemplate, sourceCode, language, framework)
}

// FixPrompt renders the repair prompt for a selected test snippet.
func FixPrompt(snippet string) string {
	return fmt.Sprintf(fixTemplate, snippet)
}

// CleanResponse removes the first two ``` markers from a generated reply,
// leaving the language tag as the first line.
func CleanResponse(content string) string {
	return strings.Replace(content, "```", "", 2)
}

// LanguageTag returns the first line of the cleaned response, which the
// backend fills with the code block's language.
func LanguageTag(content string) string {
	first, _, _ := strings.Cut(CleanResponse(content), "\n")
	return first
}
