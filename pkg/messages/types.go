// Package messages holds the command schema exchanged with the Discord shim.
//
// The wire format is fixed by messages.proto in this directory. The codec in
// codec.go is maintained by hand against that file using protowire, so the
// schema is versioned with the repository instead of being generated per run.
package messages

import "errors"

// ErrAmbiguousCommand is returned when more than one Response variant is set.
var ErrAmbiguousCommand = errors.New("response has more than one command variant set")

// ProtoFile is a named blob, used both for file uploads and embed images.
type ProtoFile struct {
	Data     []byte
	Filename string
}

type TextField struct {
	Title  string
	Text   string
	Inline bool
}

// EmbedContent describes one logical embed. The shim may split it into several
// Discord messages when it exceeds the per-embed limits.
type EmbedContent struct {
	Title       string
	Description string
	Author      string
	Color       uint32
	Snapshot    *ProtoFile
	TextFields  []TextField
}

// Settings binds the connection to a destination channel on the shim side.
type Settings struct {
	ChannelID       uint64
	CommandPrefix   string
	CycleTime       int32
	PresenceEnabled bool
}

type Presence struct {
	Presence string
}

// Response is the command union a client sends to the shim. At most one
// variant may be set; a Response with none set is a valid no-op frame.
type Response struct {
	Settings *Settings
	Embed    *EmbedContent
	File     *ProtoFile
	Presence *Presence
}

func NewSettings(channelID uint64) *Response {
	return &Response{Settings: &Settings{ChannelID: channelID}}
}

func NewEmbed(embed EmbedContent) *Response {
	return &Response{Embed: &embed}
}

func NewFile(filename string, data []byte) *Response {
	return &Response{File: &ProtoFile{Data: data, Filename: filename}}
}

func NewPresence(text string) *Response {
	return &Response{Presence: &Presence{Presence: text}}
}

// Kind names the variant that is set, for logging.
func (r *Response) Kind() string {
	switch {
	case r == nil:
		return "empty"
	case r.Settings != nil:
		return "settings"
	case r.Embed != nil:
		return "embed"
	case r.File != nil:
		return "file"
	case r.Presence != nil:
		return "presence"
	default:
		return "empty"
	}
}

func (r *Response) variants() int {
	n := 0
	if r.Settings != nil {
		n++
	}
	if r.Embed != nil {
		n++
	}
	if r.File != nil {
		n++
	}
	if r.Presence != nil {
		n++
	}
	return n
}

// Request is what the shim pushes back to connected clients: either a chat
// command typed in the bound channel or a file uploaded there.
type Request struct {
	User    uint64
	File    *ProtoFile
	Command string
}

// IsCommand reports whether the request carries a command rather than a file.
func (r *Request) IsCommand() bool {
	return r != nil && r.File == nil && r.Command != ""
}
