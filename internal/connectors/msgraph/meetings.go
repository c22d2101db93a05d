package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Event is a calendar event in the sync window.
type Event struct {
	ID            string         `json:"id"`
	Subject       string         `json:"subject"`
	Start         *DateTimeZone  `json:"start,omitempty"`
	End           *DateTimeZone  `json:"end,omitempty"`
	IsOnlineMeeting bool         `json:"isOnlineMeeting"`
	OnlineMeeting *OnlineMeetingInfo `json:"onlineMeeting,omitempty"`
}

// DateTimeZone is Graph's zoned timestamp shape.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Time parses the zoned timestamp. Graph emits times without an offset;
// non-UTC zones fall back to UTC interpretation.
func (d *DateTimeZone) Time() time.Time {
	if d == nil {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02T15:04:05.9999999", d.DateTime)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// OnlineMeetingInfo carries the join URL that links an event to its
// online meeting.
type OnlineMeetingInfo struct {
	JoinURL string `json:"joinUrl"`
}

// OnlineMeeting is a Teams online meeting.
type OnlineMeeting struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	JoinWebURL string `json:"joinWebUrl"`
}

// CallRecording is one recording of an online meeting.
type CallRecording struct {
	ID                 string    `json:"id"`
	MeetingID          string    `json:"meetingId"`
	CreatedDateTime    time.Time `json:"createdDateTime"`
	RecordingContentURL string   `json:"recordingContentUrl"`
}

// CallTranscript is one transcript of an online meeting.
type CallTranscript struct {
	ID                   string    `json:"id"`
	MeetingID            string    `json:"meetingId"`
	CreatedDateTime      time.Time `json:"createdDateTime"`
	TranscriptContentURL string    `json:"transcriptContentUrl"`
}

// CalendarView lists the signed-in user's calendar events in [start, end).
func (c *Client) CalendarView(ctx context.Context, start, end time.Time) ([]Event, error) {
	path := fmt.Sprintf("/me/calendarView?startDateTime=%s&endDateTime=%s",
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)))

	var events []Event
	err := c.GetPages(ctx, path, func(raw []json.RawMessage) (bool, error) {
		for _, r := range raw {
			var ev Event
			if err := json.Unmarshal(r, &ev); err != nil {
				return false, fmt.Errorf("decode event: %w", err)
			}
			events = append(events, ev)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// OnlineMeetingByJoinURL resolves an online meeting from its join URL.
// Returns nil when no meeting matches.
func (c *Client) OnlineMeetingByJoinURL(ctx context.Context, joinURL string) (*OnlineMeeting, error) {
	filter := url.QueryEscape(fmt.Sprintf("joinWebUrl eq '%s'", joinURL))
	var page struct {
		Value []OnlineMeeting `json:"value"`
	}
	if err := c.Get(ctx, "/me/onlineMeetings?$filter="+filter, &page); err != nil {
		return nil, err
	}
	if len(page.Value) == 0 {
		return nil, nil
	}
	return &page.Value[0], nil
}

// Recordings lists an online meeting's recordings.
func (c *Client) Recordings(ctx context.Context, meetingID string) ([]CallRecording, error) {
	var page struct {
		Value []CallRecording `json:"value"`
	}
	path := "/me/onlineMeetings/" + url.PathEscape(meetingID) + "/recordings"
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// Transcripts lists an online meeting's transcripts.
func (c *Client) Transcripts(ctx context.Context, meetingID string) ([]CallTranscript, error) {
	var page struct {
		Value []CallTranscript `json:"value"`
	}
	path := "/me/onlineMeetings/" + url.PathEscape(meetingID) + "/transcripts"
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// TranscriptContent downloads a transcript as WebVTT text.
func (c *Client) TranscriptContent(ctx context.Context, meetingID, transcriptID string, limit int64) ([]byte, error) {
	path := "/me/onlineMeetings/" + url.PathEscape(meetingID) +
		"/transcripts/" + url.PathEscape(transcriptID) + "/content?$format=text/vtt"
	return c.Download(ctx, path, limit)
}
