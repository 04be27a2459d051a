package messages

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers, kept in sync with messages.proto.
const (
	fileData     protowire.Number = 1
	fileFilename protowire.Number = 2

	textFieldTitle  protowire.Number = 1
	textFieldText   protowire.Number = 2
	textFieldInline protowire.Number = 3

	embedTitle       protowire.Number = 1
	embedDescription protowire.Number = 2
	embedAuthor      protowire.Number = 3
	embedColor       protowire.Number = 4
	embedSnapshot    protowire.Number = 5
	embedTextField   protowire.Number = 6

	settingsChannelID       protowire.Number = 1
	settingsCommandPrefix   protowire.Number = 2
	settingsCycleTime       protowire.Number = 3
	settingsPresenceEnabled protowire.Number = 4

	presenceText protowire.Number = 1

	responseSettings protowire.Number = 1
	responseEmbed    protowire.Number = 2
	responseFile     protowire.Number = 3
	responsePresence protowire.Number = 4

	requestUser    protowire.Number = 1
	requestFile    protowire.Number = 2
	requestCommand protowire.Number = 3
)

// Marshal serializes the response. The selected variant is always written,
// even when all of its fields hold zero values.
func (r *Response) Marshal() ([]byte, error) {
	if r.variants() > 1 {
		return nil, ErrAmbiguousCommand
	}
	var b []byte
	switch {
	case r.Settings != nil:
		b = appendMessage(b, responseSettings, r.Settings.appendTo)
	case r.Embed != nil:
		b = appendMessage(b, responseEmbed, r.Embed.appendTo)
	case r.File != nil:
		b = appendMessage(b, responseFile, r.File.appendTo)
	case r.Presence != nil:
		b = appendMessage(b, responsePresence, r.Presence.appendTo)
	}
	return b, nil
}

// Marshal serializes a shim-side request frame.
func (r *Request) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint(b, requestUser, r.User)
	if r.File != nil {
		b = appendMessage(b, requestFile, r.File.appendTo)
	} else {
		b = protowire.AppendTag(b, requestCommand, protowire.BytesType)
		b = protowire.AppendString(b, r.Command)
	}
	return b, nil
}

// UnmarshalResponse decodes a response frame payload.
func UnmarshalResponse(b []byte) (*Response, error) {
	r := &Response{}
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case responseSettings:
			return decodeNested(typ, b, "settings", func(v []byte) error {
				s := &Settings{}
				if err := s.unmarshal(v); err != nil {
					return err
				}
				*r = Response{Settings: s}
				return nil
			})
		case responseEmbed:
			return decodeNested(typ, b, "embed", func(v []byte) error {
				e := &EmbedContent{}
				if err := e.unmarshal(v); err != nil {
					return err
				}
				*r = Response{Embed: e}
				return nil
			})
		case responseFile:
			return decodeNested(typ, b, "file", func(v []byte) error {
				f := &ProtoFile{}
				if err := f.unmarshal(v); err != nil {
					return err
				}
				*r = Response{File: f}
				return nil
			})
		case responsePresence:
			return decodeNested(typ, b, "presence", func(v []byte) error {
				p := &Presence{}
				if err := p.unmarshal(v); err != nil {
					return err
				}
				*r = Response{Presence: p}
				return nil
			})
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return r, nil
}

// UnmarshalRequest decodes a request frame payload sent by the shim.
func UnmarshalRequest(b []byte) (*Request, error) {
	r := &Request{}
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case requestUser:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				r.User = v
			}
			return n, nil
		case requestFile:
			return decodeNested(typ, b, "file", func(v []byte) error {
				f := &ProtoFile{}
				if err := f.unmarshal(v); err != nil {
					return err
				}
				r.File, r.Command = f, ""
				return nil
			})
		case requestCommand:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				r.File, r.Command = nil, string(v)
			}
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return r, nil
}

func (f *ProtoFile) appendTo(b []byte) []byte {
	if len(f.Data) > 0 {
		b = protowire.AppendTag(b, fileData, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Data)
	}
	b = appendString(b, fileFilename, f.Filename)
	return b
}

func (f *ProtoFile) unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fileData:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				f.Data = append([]byte(nil), v...)
			}
			return n, nil
		case fileFilename:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				f.Filename = string(v)
			}
			return n, nil
		}
		return 0, nil
	})
}

func (t *TextField) appendTo(b []byte) []byte {
	b = appendString(b, textFieldTitle, t.Title)
	b = appendString(b, textFieldText, t.Text)
	b = appendBool(b, textFieldInline, t.Inline)
	return b
}

func (t *TextField) unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case textFieldTitle:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				t.Title = string(v)
			}
			return n, nil
		case textFieldText:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				t.Text = string(v)
			}
			return n, nil
		case textFieldInline:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				t.Inline = protowire.DecodeBool(v)
			}
			return n, nil
		}
		return 0, nil
	})
}

func (e *EmbedContent) appendTo(b []byte) []byte {
	b = appendString(b, embedTitle, e.Title)
	b = appendString(b, embedDescription, e.Description)
	b = appendString(b, embedAuthor, e.Author)
	b = appendUint(b, embedColor, uint64(e.Color))
	if e.Snapshot != nil {
		b = appendMessage(b, embedSnapshot, e.Snapshot.appendTo)
	}
	for i := range e.TextFields {
		b = appendMessage(b, embedTextField, e.TextFields[i].appendTo)
	}
	return b
}

func (e *EmbedContent) unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case embedTitle, embedDescription, embedAuthor:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				switch num {
				case embedTitle:
					e.Title = string(v)
				case embedDescription:
					e.Description = string(v)
				default:
					e.Author = string(v)
				}
			}
			return n, nil
		case embedColor:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				e.Color = uint32(v)
			}
			return n, nil
		case embedSnapshot:
			return decodeNested(typ, b, "snapshot", func(v []byte) error {
				f := &ProtoFile{}
				if err := f.unmarshal(v); err != nil {
					return err
				}
				e.Snapshot = f
				return nil
			})
		case embedTextField:
			return decodeNested(typ, b, "textfield", func(v []byte) error {
				var t TextField
				if err := t.unmarshal(v); err != nil {
					return err
				}
				e.TextFields = append(e.TextFields, t)
				return nil
			})
		}
		return 0, nil
	})
}

func (s *Settings) appendTo(b []byte) []byte {
	b = appendUint(b, settingsChannelID, s.ChannelID)
	b = appendString(b, settingsCommandPrefix, s.CommandPrefix)
	// int32 is sign-extended to 64 bits on the wire.
	b = appendUint(b, settingsCycleTime, uint64(int64(s.CycleTime)))
	b = appendBool(b, settingsPresenceEnabled, s.PresenceEnabled)
	return b
}

func (s *Settings) unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case settingsChannelID:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				s.ChannelID = v
			}
			return n, nil
		case settingsCommandPrefix:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				s.CommandPrefix = string(v)
			}
			return n, nil
		case settingsCycleTime:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				s.CycleTime = int32(v)
			}
			return n, nil
		case settingsPresenceEnabled:
			v, n := consumeVarint(typ, b)
			if n > 0 {
				s.PresenceEnabled = protowire.DecodeBool(v)
			}
			return n, nil
		}
		return 0, nil
	})
}

func (p *Presence) appendTo(b []byte) []byte {
	return appendString(b, presenceText, p.Presence)
}

func (p *Presence) unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != presenceText {
			return 0, nil
		}
		v, n := consumeBytes(typ, b)
		if n > 0 {
			p.Presence = string(v)
		}
		return n, nil
	})
}

// Proto3 scalars are omitted when they hold the zero value.

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, body func([]byte) []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body(nil))
}

// fieldFunc decodes one field value starting at b. It returns the number of
// bytes consumed, 0 to have the field skipped as unknown, or a negative
// protowire error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func decodeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func decodeNested(typ protowire.Type, b []byte, name string, fn func([]byte) error) (int, error) {
	v, n := consumeBytes(typ, b)
	if n <= 0 {
		return n, nil
	}
	if err := fn(v); err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

// A wire type mismatch yields 0 so the caller skips the field, matching how
// proto runtimes treat it as unknown.

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int) {
	if typ != protowire.BytesType {
		return nil, 0
	}
	return protowire.ConsumeBytes(b)
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int) {
	if typ != protowire.VarintType {
		return 0, 0
	}
	return protowire.ConsumeVarint(b)
}
