package scraper

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Message is a captured Discord message, flattened to what assertions need.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	AuthorID    string       `json:"author_id,omitempty"`
	AuthorName  string       `json:"author_name,omitempty"`
	Content     string       `json:"content"`
	Direct      bool         `json:"direct"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`
}

type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	AuthorName  string       `json:"author_name,omitempty"`
	Color       int          `json:"color,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func capture(m *discordgo.Message) Message {
	msg := Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Direct:    m.GuildID == "",
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
	}

	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		embed := Embed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.Author != nil {
			embed.AuthorName = e.Author.Name
		}
		if e.Image != nil {
			embed.ImageURL = e.Image.URL
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		msg.Embeds = append(msg.Embeds, embed)
	}
	return msg
}
