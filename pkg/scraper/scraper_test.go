package scraper

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sipeed/shimharness/pkg/scraper/scrapertest"
)

const targetChannel = "467700763775205396"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startReady(t *testing.T) (*Scraper, *scrapertest.Session) {
	t.Helper()
	session := scrapertest.NewSession()
	s := New(session, targetChannel)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))
	return s, session
}

func stopAndJoin(t *testing.T, s *Scraper) {
	t.Helper()
	s.Stop()
	require.NoError(t, s.Wait())
}

func guildMessage(id, channel string) *discordgo.Message {
	return &discordgo.Message{ID: id, ChannelID: channel, GuildID: "guild", Content: id}
}

func TestLifecycleAndFiltering(t *testing.T) {
	s, session := startReady(t)
	assert.Equal(t, Connected, s.State())
	assert.True(t, s.IsReady())
	assert.True(t, session.IsOpen())

	session.EmitMessage(guildMessage("m1", targetChannel))
	session.EmitMessage(guildMessage("other", "999"))
	session.EmitMessage(&discordgo.Message{ID: "dm", ChannelID: "555", Content: "dm"})
	session.EmitMessage(guildMessage("m2", targetChannel))

	msgs := s.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "dm", msgs[1].ID)
	assert.True(t, msgs[1].Direct)
	assert.Equal(t, "m2", msgs[2].ID)

	stopAndJoin(t, s)
	assert.Equal(t, Closed, s.State())
	assert.False(t, session.IsOpen())
	assert.Zero(t, session.HandlerCount())
}

func TestBufferFrozenAfterJoin(t *testing.T) {
	s, session := startReady(t)
	session.EmitMessage(guildMessage("m1", targetChannel))
	stopAndJoin(t, s)

	// Late delivery straight into the callback, as if dispatched after close.
	s.onMessageCreate(nil, &discordgo.MessageCreate{Message: guildMessage("late", targetChannel)})
	msgs := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, session := startReady(t)
	defer stopAndJoin(t, s)

	session.EmitMessage(guildMessage("m1", targetChannel))
	snap := s.Snapshot()
	snap[0].Content = "mutated"
	assert.Equal(t, "m1", s.Snapshot()[0].Content)
}

func TestWaitForMessagesWakesOnAppend(t *testing.T) {
	s, session := startReady(t)
	defer stopAndJoin(t, s)

	var wg sync.WaitGroup
	var got []Message
	var waitErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		got, waitErr = s.WaitForMessages(ctx, 2)
	}()

	session.EmitMessage(guildMessage("m1", targetChannel))
	session.EmitMessage(guildMessage("m2", targetChannel))
	wg.Wait()

	require.NoError(t, waitErr)
	assert.Len(t, got, 2)
}

func TestWaitForMessagesTimeoutReturnsPartial(t *testing.T) {
	s, session := startReady(t)
	defer stopAndJoin(t, s)

	session.EmitMessage(guildMessage("m1", targetChannel))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got, err := s.WaitForMessages(ctx, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, got, 1)
}

func TestWaitForMessagesEndsOnClose(t *testing.T) {
	s, _ := startReady(t)

	go s.Stop()
	got, err := s.WaitForMessages(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, got)
	require.NoError(t, s.Wait())
}

func TestMessagesBeforeReadyAreDropped(t *testing.T) {
	session := scrapertest.NewSession()
	session.AutoReady = false
	s := New(session, targetChannel)
	require.NoError(t, s.Start(context.Background()))
	defer stopAndJoin(t, s)

	require.Eventually(t, session.IsOpen, time.Second, 5*time.Millisecond)
	session.EmitMessage(guildMessage("early", targetChannel))
	assert.False(t, s.IsReady())

	session.EmitReady()
	require.NoError(t, s.WaitReady(context.Background()))
	session.EmitMessage(guildMessage("m1", targetChannel))

	msgs := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestOpenFailureEndsClosed(t *testing.T) {
	session := scrapertest.NewSession()
	session.OpenErr = errors.New("invalid token")
	s := New(session, targetChannel)
	require.NoError(t, s.Start(context.Background()))

	err := s.WaitReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	assert.ErrorContains(t, s.Wait(), "invalid token")
	assert.Equal(t, Closed, s.State())
	assert.False(t, s.IsReady())
}

func TestWaitReadyHonoursContext(t *testing.T) {
	session := scrapertest.NewSession()
	session.AutoReady = false
	s := New(session, targetChannel)
	require.NoError(t, s.Start(context.Background()))
	defer stopAndJoin(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitReady(ctx), context.DeadlineExceeded)
	assert.Equal(t, Connecting, s.State())
}

func TestStartTwiceFails(t *testing.T) {
	s, _ := startReady(t)
	defer stopAndJoin(t, s)
	assert.Error(t, s.Start(context.Background()))
}

func TestStopBeforeStart(t *testing.T) {
	s := New(scrapertest.NewSession(), targetChannel)
	require.NoError(t, s.Wait())
	s.Stop()
	assert.Equal(t, Closed, s.State())
	require.NoError(t, s.Wait())
	assert.Error(t, s.Start(context.Background()))
}

func TestCaptureConvertsEmbedsAndAttachments(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := capture(&discordgo.Message{
		ID:        "1",
		ChannelID: targetChannel,
		GuildID:   "guild",
		Content:   "Helloworld.dat.zip.000",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "7", Username: "discordshim"},
		Attachments: []*discordgo.MessageAttachment{
			{ID: "a1", Filename: "Helloworld.txt", URL: "https://cdn/Helloworld.txt", Size: 11},
		},
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Title",
			Description: "description",
			Color:       0x123456,
			Author:      &discordgo.MessageEmbedAuthor{Name: "Author"},
			Image:       &discordgo.MessageEmbedImage{URL: "attachment://snapshot.png"},
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Title", Value: "​"},
				nil,
			},
		}},
	})

	assert.False(t, msg.Direct)
	assert.Equal(t, "discordshim", msg.AuthorName)
	assert.Equal(t, ts, msg.Timestamp)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Helloworld.txt", msg.Attachments[0].Filename)
	require.Len(t, msg.Embeds, 1)
	e := msg.Embeds[0]
	assert.Equal(t, "Author", e.AuthorName)
	assert.Equal(t, 0x123456, e.Color)
	assert.Equal(t, "attachment://snapshot.png", e.ImageURL)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "Title", e.Fields[0].Name)
}

func TestNewDiscordSession(t *testing.T) {
	session, err := NewDiscordSession("x")
	require.NoError(t, err)
	assert.Equal(t, discordgo.IntentsAll, session.Identify.Intents)
	assert.True(t, session.SyncEvents)
	assert.Equal(t, "Bot x", session.Token)
	assert.Equal(t, "Bot x", session.Identify.Token)

	session, err = NewDiscordSession("Bot y")
	require.NoError(t, err)
	assert.Equal(t, "Bot y", session.Token)
}

func TestCaptureKeepsDeliveryOrder(t *testing.T) {
	const count = 200

	discord, err := NewDiscordSession("x")
	require.NoError(t, err)

	session := scrapertest.NewSession()
	session.SyncEvents = discord.SyncEvents
	s := New(session, targetChannel)
	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))

	sent := make([]*discordgo.Message, count)
	for i := range sent {
		sent[i] = guildMessage(strconv.Itoa(i), targetChannel)
	}
	session.EmitMessages(sent)

	msgs := s.Snapshot()
	require.Len(t, msgs, count)
	for i, m := range msgs {
		require.Equal(t, strconv.Itoa(i), m.ID, "message %d out of delivery order", i)
	}
	stopAndJoin(t, s)
}

func TestUnsyncedDispatchStillCapturesEverything(t *testing.T) {
	session := scrapertest.NewSession()
	session.SyncEvents = false
	s := New(session, targetChannel)
	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))

	sent := make([]*discordgo.Message, 50)
	for i := range sent {
		sent[i] = guildMessage(strconv.Itoa(i), targetChannel)
	}
	session.EmitMessages(sent)

	ids := make(map[string]bool)
	for _, m := range s.Snapshot() {
		ids[m.ID] = true
	}
	assert.Len(t, ids, len(sent))
	stopAndJoin(t, s)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "shutting_down", ShuttingDown.String())
	assert.Equal(t, "state(9)", State(9).String())
}
