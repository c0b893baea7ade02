package oracle

import (
	"fmt"
	"time"
)

// SystemInstruction frames the extraction task for every provider.
const SystemInstruction = "You are an expert at extracting calendar events from text. Always return valid JSON."

// extractionPrompt expects, in order: today's date, tomorrow's date, the
// current year and the text to analyze.
const extractionPrompt = `Today's date: %[1]s

Analyze the following text and extract any calendar events, meetings, deadlines, or important dates.
Return a JSON array of events with this exact structure:

[
  {
    "title": "Event name or description",
    "start_date": "YYYY-MM-DD",
    "start_time": "HH:MM" (if mentioned, otherwise null),
    "end_date": "YYYY-MM-DD" (if different from start_date, otherwise null),
    "end_time": "HH:MM" (if mentioned, otherwise null),
    "description": "Additional details about the event",
    "location": "Location if mentioned",
    "confidence_score": 0.95 (float between 0 and 1)
  }
]

IMPORTANT DATE HANDLING:
1. For explicit dates like "June 27, 2025", use the exact date in YYYY-MM-DD format and keep any time information.
2. For relative dates ("tomorrow", "next week"), convert to absolute dates based on today (%[1]s). "tomorrow" is %[2]s.
3. For same-day time ranges ("8:30 AM to 4:00 PM"), use the same date for start and end and 24-hour times ("08:30", "16:00").
4. For recurring patterns, extract each occurrence as a separate event with a specific date.

- If the year is not mentioned, assume %[3]d.
- Always use YYYY-MM-DD for dates and HH:MM (24-hour) for times.
- If there are no events, return an empty array [].

Text to analyze:
%[4]s
`

// BuildPrompt renders the extraction prompt for text anchored at ref.
func BuildPrompt(text string, ref time.Time) string {
	ref = ref.UTC()
	return fmt.Sprintf(extractionPrompt,
		ref.Format(time.DateOnly),
		ref.AddDate(0, 0, 1).Format(time.DateOnly),
		ref.Year(),
		text)
}
