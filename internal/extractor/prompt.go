package extractor

import (
	"strings"

	"incidentetl/internal/keywords"
)

// SystemPrompt is the fixed system message of every extraction request.
const SystemPrompt = "You are a strict JSON extraction assistant."

// BuildPrompt returns the user message asking for the location and incident
// keywords of transcript.
func BuildPrompt(transcript string) string {
	var b strings.Builder

	b.WriteString("You are an assistant that extracts information from emergency transcripts.\n\n")
	b.WriteString("Tasks:\n")
	b.WriteString("1. Extract the full location if present (street number, name, type, city, state, zip).\n")
	b.WriteString("   - Convert spelled-out numbers to digits.\n")
	b.WriteString("   - Standardize to USPS-style formatting.\n")
	b.WriteString("2. Identify ALL relevant incident keywords from this list:\n")
	b.WriteString(keywords.Joined())
	b.WriteString("\n")
	b.WriteString("3. Return ONLY valid JSON with two keys:\n")
	b.WriteString("   - 'location': string\n")
	b.WriteString("   - 'keywords': array of matching keywords\n\n")
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n")

	return b.String()
}
