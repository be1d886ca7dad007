package discord

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/streamscribe/internal/notify"
)

const (
	messageTranscriptTitle = ":page_facing_up:  **Transcript**"
	messageSessionLine     = "-# session `%s` via %s, %s, ended: %s"
)

// ChannelSender posts finished transcripts to one text channel over the REST API.
// It never opens a gateway connection.
type ChannelSender struct {
	session   *discordgo.Session
	channelID string
}

func NewChannelSender(token, channelID string) (*ChannelSender, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &ChannelSender{session: s, channelID: channelID}, nil
}

func (c *ChannelSender) SendTranscript(ctx context.Context, payload notify.TranscriptPayload) error {
	_, err := c.session.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Content: transcriptMessage(payload),
		Files: []*discordgo.File{{
			Name:        notify.TranscriptFilename(payload),
			ContentType: "text/plain",
			Reader:      bytes.NewReader(notify.RenderText(payload)),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post transcript to discord: %w", err)
	}
	return nil
}

func transcriptMessage(p notify.TranscriptPayload) string {
	return strings.Join([]string{
		messageTranscriptTitle,
		fmt.Sprintf(messageSessionLine, p.SessionID, p.Transport, formatDuration(p.DurationSeconds), p.Reason),
	}, "\n")
}

func formatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
