// Package parser decodes YouTube PubSubHubbub Atom feed notifications.
package parser

import (
	"encoding/xml"
	"fmt"
)

// feed is the wire form of a YouTube Atom notification. YouTube uses the
// Atom 1.0 format with its own namespace for video and channel ids.
type feed struct {
	XMLName xml.Name       `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []entry        `xml:"entry"`
	Deleted *deletedMarker `xml:"http://www.youtube.com/xml/schemas/2015 deleted-entry"`
}

type entry struct {
	VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	ChannelID string `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	Title     string `xml:"title"`
	Link      link   `xml:"link"`
}

type link struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type deletedMarker struct {
	Ref string `xml:"ref,attr"`
}

// Notification is one video entry extracted from a feed body.
type Notification struct {
	VideoID   string
	ChannelID string
	Title     string
	Link      string
}

// Feed is the parsed form of one notification body.
type Feed struct {
	// Deleted is set when the body carries a yt:deleted-entry marker.
	// Such bodies are acknowledged and otherwise ignored.
	Deleted bool

	Notifications []Notification
}

// Parse decodes an Atom notification body. Deletion markers are detected
// structurally, not by raw text containment.
func Parse(body []byte) (*Feed, error) {
	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("unmarshal atom feed: %w", err)
	}

	if f.Deleted != nil {
		return &Feed{Deleted: true}, nil
	}

	out := &Feed{}
	for _, e := range f.Entries {
		if e.VideoID == "" {
			return nil, fmt.Errorf("atom entry missing video ID")
		}
		if e.ChannelID == "" {
			return nil, fmt.Errorf("atom entry missing channel ID")
		}

		href := e.Link.Href
		if href == "" {
			href = fmt.Sprintf("https://www.youtube.com/watch?v=%s", e.VideoID)
		}

		out.Notifications = append(out.Notifications, Notification{
			VideoID:   e.VideoID,
			ChannelID: e.ChannelID,
			Title:     e.Title,
			Link:      href,
		})
	}

	return out, nil
}
