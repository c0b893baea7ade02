package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edgard/calendarbot/internal/event"
)

var errEmptyResponse = errors.New("empty response")

// parseEvents decodes a model reply into raw records. The reply may be a
// bare JSON array, an object wrapping the array under "events", or either
// of those inside a markdown code fence. Records that do not decode are
// reported in skipped and never affect their siblings; err is set only
// when the reply as a whole is unusable.
func parseEvents(reply string) (events []event.RawEvent, skipped []error, err error) {
	body := strings.TrimSpace(reply)
	if body == "" {
		return nil, nil, errEmptyResponse
	}

	if !json.Valid([]byte(body)) {
		body = stripFence(body)
	}

	data := []byte(body)
	var records []json.RawMessage
	switch {
	case bytes.HasPrefix(data, []byte("[")):
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, nil, fmt.Errorf("invalid events array: %w", err)
		}
	case bytes.HasPrefix(data, []byte("{")):
		var wrapped struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, nil, fmt.Errorf("invalid events object: %w", err)
		}
		records = wrapped.Events
	case string(data) == "null":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("reply is not JSON: %.80q", body)
	}

	events = make([]event.RawEvent, 0, len(records))
	for i, rec := range records {
		var raw event.RawEvent
		if err := json.Unmarshal(rec, &raw); err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		events = append(events, raw)
	}
	return events, skipped, nil
}

// stripFence returns the content of the first ```json (or plain ```) block.
func stripFence(s string) string {
	for _, open := range []string{"```json", "```"} {
		if _, rest, ok := strings.Cut(s, open); ok {
			inner, _, _ := strings.Cut(rest, "```")
			return strings.TrimSpace(inner)
		}
	}
	return s
}
