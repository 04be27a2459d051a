package harness

import (
	"fmt"
	"strings"

	"github.com/sipeed/shimharness/pkg/messages"
	"github.com/sipeed/shimharness/pkg/scraper"
)

const (
	ColorInfo = 0x123456

	mentionText     = "<@481274558238949415>"
	snapshotName    = "snapshot.png"
	smallFileName   = "Helloworld.txt"
	largeFileName   = "Helloworld.dat"
	largeFileSize   = 6 * messages.OneMegabyte
	unicodeSample   = "٩(-̮̮̃-̃)۶ ٩(●̮̮̃•̃)۶ ٩(͡๏̯͡๏)۶ ٩(-̮̮̃•̃)."
	smallFileString = "Hello World"
)

// Scenario is one command sent to the shim together with what Discord must
// show for it.
type Scenario struct {
	Name string

	// SkipSetup connects without sending Settings first.
	SkipSetup bool
	// SkipScraper only checks that the command can be delivered.
	SkipScraper bool

	Build  func(fx Fixtures) *messages.Response
	Expect int
	Check  func(msgs []scraper.Message) error
}

// Suite returns every scenario in execution order.
func Suite() []Scenario {
	return []Scenario{
		sendWithoutSettings(),
		minimalEmbed(),
		embedMention(),
		completeEmbed(),
		smallFile(),
		largeFile(),
		paginatedEmbed(),
		unicodeEmbed(),
		boundaryEmbed(),
	}
}

// Select picks scenarios by name, keeping the order of names. No names
// selects the whole suite.
func Select(suite []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return suite, nil
	}
	byName := make(map[string]Scenario, len(suite))
	for _, sc := range suite {
		byName[sc.Name] = sc
	}
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, sc)
	}
	return out, nil
}

func sendWithoutSettings() Scenario {
	return Scenario{
		Name:        "send_without_settings",
		SkipSetup:   true,
		SkipScraper: true,
		Build: func(Fixtures) *messages.Response {
			return messages.NewEmbed(messages.EmbedContent{})
		},
	}
}

func minimalEmbed() Scenario {
	return Scenario{
		Name: "minimal_embed",
		Build: func(Fixtures) *messages.Response {
			return messages.NewEmbed(messages.EmbedContent{})
		},
		Expect: 1,
	}
}

func embedMention() Scenario {
	return Scenario{
		Name: "embed_mention",
		Build: func(Fixtures) *messages.Response {
			return messages.NewEmbed(messages.EmbedContent{Description: mentionText})
		},
		Expect: 1,
	}
}

func completeEmbed() Scenario {
	return Scenario{
		Name: "complete_embed",
		Build: func(fx Fixtures) *messages.Response {
			return messages.NewEmbed(messages.EmbedContent{
				Author:      "Author",
				Title:       "Title",
				Description: "description",
				Color:       ColorInfo,
				Snapshot:    &messages.ProtoFile{Data: fx.TestPattern, Filename: snapshotName},
				TextFields: []messages.TextField{
					{Title: "Title"},
					{Text: "Text"},
				},
			})
		},
		Expect: 1,
		Check: func(msgs []scraper.Message) error {
			embed, err := embedAt(msgs, 0)
			if err != nil {
				return err
			}
			if !strings.Contains(embed.ImageURL, snapshotName) {
				return assertf("embed image %q does not reference %s", embed.ImageURL, snapshotName)
			}
			return nil
		},
	}
}

func smallFile() Scenario {
	return Scenario{
		Name: "small_file",
		Build: func(Fixtures) *messages.Response {
			return messages.NewFile(smallFileName, []byte(smallFileString))
		},
		Expect: 1,
		Check: func(msgs []scraper.Message) error {
			if err := exactly(msgs, 1); err != nil {
				return err
			}
			return attachmentNamed(msgs, 0, smallFileName)
		},
	}
}

// The shim stores the upload in a zip split into 1 MiB parts. Random data
// does not compress, so six megabytes become seven parts: part 000 goes out
// with a message naming the file, parts 001 to 006 follow one per message.
func largeFile() Scenario {
	parts := largeFileSize/messages.OneMegabyte + 1
	return Scenario{
		Name: "large_file",
		Build: func(Fixtures) *messages.Response {
			return messages.NewFile(largeFileName, RandomBytes(largeFileSize))
		},
		Expect: parts,
		Check: func(msgs []scraper.Message) error {
			if err := exactly(msgs, parts); err != nil {
				return err
			}
			if !strings.Contains(msgs[0].Content, largeFileName) {
				return assertf("message 0 content %q does not name %s", msgs[0].Content, largeFileName)
			}
			for i := 1; i < parts; i++ {
				if err := attachmentNamed(msgs, i, messages.ChunkName(largeFileName, i)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func maxedEmbed(fields int) messages.EmbedContent {
	textFields := make([]messages.TextField, fields)
	for i := range textFields {
		textFields[i] = messages.TextField{
			Title:  strings.Repeat("c", messages.MaxTitle),
			Text:   strings.Repeat("d", messages.MaxFieldValue),
			Inline: true,
		}
	}
	return messages.EmbedContent{
		Title:       strings.Repeat("a", messages.MaxTitle),
		Description: strings.Repeat("b", messages.MaxDescription),
		Author:      strings.Repeat("c", messages.MaxAuthor),
		Color:       ColorInfo,
		TextFields:  textFields,
	}
}

func paginatedEmbed() Scenario {
	embed := maxedEmbed(messages.MaxFields + 1)
	return Scenario{
		Name: "paginated_embed",
		Build: func(Fixtures) *messages.Response {
			return messages.NewEmbed(embed)
		},
		Expect: messages.ExpectedPages(embed),
		Check: func(msgs []scraper.Message) error {
			first, err := embedAt(msgs, 0)
			if err != nil {
				return err
			}
			return headerMatches(first, embed)
		},
	}
}

func unicodeEmbed() Scenario {
	return Scenario{
		Name: "unicode_embed",
		Build: func(Fixtures) *messages.Response {
			return messages.NewEmbed(messages.EmbedContent{
				Title:       unicodeSample,
				Description: unicodeSample,
				Author:      unicodeSample,
				TextFields:  []messages.TextField{{Title: unicodeSample, Text: unicodeSample}},
			})
		},
		Expect: 1,
		Check: func(msgs []scraper.Message) error {
			embed, err := embedAt(msgs, 0)
			if err != nil {
				return err
			}
			return fieldsMatch(embed, []messages.TextField{{Title: unicodeSample, Text: unicodeSample}}, unicodeSample)
		},
	}
}

// boundaryEmbed fills every string to its limit while staying on one page.
func boundaryEmbed() Scenario {
	embed := maxedEmbed(1)
	return Scenario{
		Name: "boundary_embed",
		Build: func(Fixtures) *messages.Response {
			return messages.NewEmbed(embed)
		},
		Expect: messages.ExpectedPages(embed),
		Check: func(msgs []scraper.Message) error {
			first, err := embedAt(msgs, 0)
			if err != nil {
				return err
			}
			if err := headerMatches(first, embed); err != nil {
				return err
			}
			return fieldsMatch(first, embed.TextFields, "")
		},
	}
}

func embedAt(msgs []scraper.Message, i int) (scraper.Embed, error) {
	if i >= len(msgs) {
		return scraper.Embed{}, assertf("no message %d, observed %d", i, len(msgs))
	}
	if len(msgs[i].Embeds) == 0 {
		return scraper.Embed{}, assertf("message %d has no embed", i)
	}
	return msgs[i].Embeds[0], nil
}

func exactly(msgs []scraper.Message, n int) error {
	if len(msgs) != n {
		return assertf("observed %d messages, want exactly %d", len(msgs), n)
	}
	return nil
}

// attachmentNamed requires message i to carry a single attachment called name.
func attachmentNamed(msgs []scraper.Message, i int, name string) error {
	if i >= len(msgs) {
		return assertf("no message %d, observed %d", i, len(msgs))
	}
	if n := len(msgs[i].Attachments); n != 1 {
		return assertf("message %d has %d attachments, want exactly one named %s", i, n, name)
	}
	if got := msgs[i].Attachments[0].Filename; got != name {
		return assertf("message %d attachment is %q, want %s", i, got, name)
	}
	return nil
}

func headerMatches(got scraper.Embed, want messages.EmbedContent) error {
	if got.Title != want.Title {
		return assertf("title mismatch: got %d chars, want %d", len([]rune(got.Title)), len([]rune(want.Title)))
	}
	if got.Description != want.Description {
		return assertf("description mismatch: got %d chars, want %d", len([]rune(got.Description)), len([]rune(want.Description)))
	}
	if got.AuthorName != want.Author {
		return assertf("author mismatch: got %q", got.AuthorName)
	}
	return nil
}

// fieldsMatch compares fields positionally. A non-empty header also
// requires title, description and author to equal it.
func fieldsMatch(got scraper.Embed, want []messages.TextField, header string) error {
	if header != "" {
		if err := headerMatches(got, messages.EmbedContent{Title: header, Description: header, Author: header}); err != nil {
			return err
		}
	}
	if len(got.Fields) < len(want) {
		return assertf("embed has %d fields, want %d", len(got.Fields), len(want))
	}
	for i, f := range want {
		if got.Fields[i].Name != f.Title {
			return assertf("field %d name %q, want %q", i, got.Fields[i].Name, f.Title)
		}
		if got.Fields[i].Value != f.Text {
			return assertf("field %d value differs (%d chars, want %d)", i, len([]rune(got.Fields[i].Value)), len([]rune(f.Text)))
		}
	}
	return nil
}
