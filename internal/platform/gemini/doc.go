// Package gemini interprets completed tarot readings with Google's Gemini API.
//
// This package is an infrastructure adapter: it turns a domain.ReadingSession
// into a prompt, calls the model, and returns plain text to the session
// manager without exposing genai types to the rest of the application.
//
// Key components:
//
// 1. Interpreter:
//   - Implements the session.Interpreter interface
//   - Handles communication with the Gemini API
//
// 2. Prompt Management:
//   - Renders an embedded text/template with the spread, positions and cards
//   - Writes the prompt in the reader's display language
//
// 3. Error Handling:
//   - Retries transient API failures with exponential backoff and jitter
//   - Returns blocked or empty responses immediately as permanent errors
//
// Interpretation is optional. The client only builds an Interpreter when an
// API key is configured.
package gemini
