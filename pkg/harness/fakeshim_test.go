package harness

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/shimharness/pkg/messages"
	"github.com/sipeed/shimharness/pkg/scraper"
	"github.com/sipeed/shimharness/pkg/scraper/scrapertest"
	"github.com/sipeed/shimharness/pkg/shimclient"
)

const testChannel = "467700763775205396"

// fakeShim decodes commands like the real shim and turns them into the
// Discord events the real shim would cause.
type fakeShim struct {
	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	session  *scrapertest.Session
	conns    []net.Conn
	received []*messages.Response
	drop     bool
	echo     func(title string) []*messages.Request
	nextID   int
}

func newFakeShim(t *testing.T) *fakeShim {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeShim{ln: ln}
	f.wg.Add(1)
	go f.accept()
	t.Cleanup(f.close)
	return f
}

func (f *fakeShim) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeShim) options() Options {
	return Options{
		Host:           "127.0.0.1",
		Port:           f.port(),
		DialTimeout:    time.Second,
		ChannelID:      testChannel,
		Token:          "test-token",
		ReadyTimeout:   2 * time.Second,
		MessageTimeout: 5 * time.Second,
		NewSession:     f.newSession,
	}
}

func (f *fakeShim) newSession(string) (scraper.Session, error) {
	s := scrapertest.NewSession()
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	return s, nil
}

func (f *fakeShim) setDrop(drop bool) {
	f.mu.Lock()
	f.drop = drop
	f.mu.Unlock()
}

func (f *fakeShim) setEcho(echo func(title string) []*messages.Request) {
	f.mu.Lock()
	f.echo = echo
	f.mu.Unlock()
}

func (f *fakeShim) commands() []*messages.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*messages.Response, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeShim) close() {
	f.ln.Close()
	f.mu.Lock()
	for _, c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *fakeShim) accept() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		f.wg.Add(1)
		go f.serve(conn)
	}
}

func (f *fakeShim) serve(conn net.Conn) {
	defer f.wg.Done()
	defer conn.Close()

	var channel uint64
	for {
		payload, err := shimclient.ReadFrame(conn, shimclient.MaxFrameSize)
		if err != nil {
			return
		}
		cmd, err := messages.UnmarshalResponse(payload)
		if err != nil {
			return
		}

		f.mu.Lock()
		f.received = append(f.received, cmd)
		session, drop, echo := f.session, f.drop, f.echo
		f.mu.Unlock()

		switch {
		case cmd.Settings != nil:
			channel = cmd.Settings.ChannelID
		case cmd.Embed != nil:
			if echo != nil {
				for _, req := range echo(cmd.Embed.Title) {
					b, _ := req.Marshal()
					if err := shimclient.WriteFrame(conn, b); err != nil {
						return
					}
				}
			}
			if !drop && session != nil && channel != 0 {
				for _, m := range f.embedMessages(channel, *cmd.Embed) {
					session.EmitMessage(m)
				}
			}
		case cmd.File != nil:
			if !drop && session != nil && channel != 0 {
				for _, m := range f.fileMessages(channel, *cmd.File) {
					session.EmitMessage(m)
				}
			}
		}
	}
}

func (f *fakeShim) message(channel uint64) *discordgo.Message {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	return &discordgo.Message{
		ID:        strconv.Itoa(id),
		ChannelID: strconv.FormatUint(channel, 10),
		GuildID:   "1000",
		Author:    &discordgo.User{ID: "99", Username: "shim"},
		Timestamp: time.Now(),
	}
}

func (f *fakeShim) embedMessages(channel uint64, e messages.EmbedContent) []*discordgo.Message {
	pages := messages.ExpectedPages(e)
	out := make([]*discordgo.Message, pages)
	for p := range out {
		embed := &discordgo.MessageEmbed{
			Author:      &discordgo.MessageEmbedAuthor{Name: e.Author},
			Color:       int(e.Color),
			Description: "\u200b",
		}
		if p == 0 {
			embed.Title = e.Title
			embed.Description = e.Description
			if e.Snapshot != nil {
				embed.Image = &discordgo.MessageEmbedImage{
					URL: "https://cdn.discordapp.com/attachments/1/2/" + e.Snapshot.Filename,
				}
			}
		}
		m := f.message(channel)
		m.Embeds = []*discordgo.MessageEmbed{embed}
		out[p] = m
	}
	for i, field := range e.TextFields {
		embed := out[i%pages].Embeds[0]
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   field.Title,
			Value:  field.Text,
			Inline: field.Inline,
		})
	}
	return out
}

func (f *fakeShim) fileMessages(channel uint64, file messages.ProtoFile) []*discordgo.Message {
	if len(file.Data) < messages.MaxAttachmentSize {
		m := f.message(channel)
		m.Attachments = []*discordgo.MessageAttachment{{ID: "a0", Filename: file.Filename, Size: len(file.Data)}}
		return []*discordgo.Message{m}
	}

	parts := len(file.Data)/messages.OneMegabyte + 1
	out := make([]*discordgo.Message, parts)
	for i := range out {
		m := f.message(channel)
		if i == 0 {
			m.Content = "Uploading " + file.Filename
		}
		m.Attachments = []*discordgo.MessageAttachment{{
			ID:       "a" + strconv.Itoa(i),
			Filename: messages.ChunkName(file.Filename, i),
			Size:     messages.OneMegabyte,
		}}
		out[i] = m
	}
	return out
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}
