package messages

import "fmt"

const OneMegabyte = 1024 * 1024

// Discord limits the shim has to respect. The shim measures strings in UTF-8
// bytes, so multi-byte text reaches these limits sooner than Discord itself
// would enforce them.
const (
	MaxTitle          = 256
	MaxDescription    = 4096
	MaxFields         = 25
	MaxFieldValue     = 1024
	MaxFooter         = 2048
	MaxAuthor         = 256
	MaxEmbedTotal     = 6000
	MaxAttachmentSize = 5 * OneMegabyte
)

// continuationDescription is what the shim puts in the description of every
// page after the first, since Discord rejects embeds with an empty one.
const continuationDescription = "\u200b"

// ExpectedPages predicts how many Discord messages the shim emits for one
// embed command. A new page starts when the current one already holds
// MaxFields fields or the next field would push it past MaxEmbedTotal.
// Lengths are UTF-8 byte counts, and over-long strings count at their
// truncated length.
func ExpectedPages(e EmbedContent) int {
	author := clampLen(e.Author, MaxAuthor)
	description := clampLen(e.Description, MaxDescription)
	if description == 0 {
		description = len(continuationDescription)
	}

	pages := 1
	total := clampLen(e.Title, MaxTitle) + description + author
	fields := 0
	for _, f := range e.TextFields {
		size := clampLen(f.Title, MaxTitle) + clampLen(f.Text, MaxFieldValue)
		if fields >= MaxFields || total+size > MaxEmbedTotal {
			pages++
			fields = 0
			total = len(continuationDescription) + author
		}
		fields++
		total += size
	}
	return pages
}

// ChunkName is the attachment name the shim gives to the index-th part of a
// split upload.
func ChunkName(filename string, index int) string {
	return fmt.Sprintf("%s.zip.%03d", filename, index)
}

func clampLen(s string, limit int) int {
	return min(len(s), limit)
}
