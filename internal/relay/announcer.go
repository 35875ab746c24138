// internal/relay/announcer.go
package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

// MaxChatLength is the longest line the client accepts in lobby chat.
const MaxChatLength = 254

// Sender delivers commands to the game client.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Announcer turns controller events into lobby chat lines.
type Announcer struct {
	sub    *events.Subscription
	sender Sender
	logger *logrus.Logger
}

func NewAnnouncer(bus *events.Bus, sender Sender, logger *logrus.Logger) *Announcer {
	return &Announcer{
		sub:    bus.Subscribe(64),
		sender: sender,
		logger: logger,
	}
}

func (a *Announcer) Run(ctx context.Context) error {
	defer a.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-a.sub.C():
			if !ok {
				return nil
			}
			for _, line := range Announcement(env.Event) {
				if err := a.sender.Send(protocol.SendChatMessage{Text: line}); err != nil {
					a.logger.WithFields(logrus.Fields{"kind": env.Kind, "error": err}).Warn("Failed to announce event")
					break
				}
			}
		}
	}
}

// Announcement returns the chat lines for ev, or nil when ev is not
// announced. Lines longer than MaxChatLength are split on word boundaries.
func Announcement(ev events.Event) []string {
	var text string
	switch ev := ev.(type) {
	case events.Notice:
		text = ev.Text
	case events.LobbyBalanced:
		text = fmt.Sprintf("Teams balanced with %d swap(s)", len(ev.Swaps))
	case events.StartArmed:
		text = fmt.Sprintf("Game starts in %d seconds", int(ev.Delay.Seconds()+0.5))
	case events.StartCancelled:
		text = "Start cancelled: " + ev.Reason
	default:
		return nil
	}
	return splitChat(text, MaxChatLength)
}

func splitChat(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		for len(word) > limit {
			if cur.Len() > 0 {
				lines = append(lines, cur.String())
				cur.Reset()
			}
			lines = append(lines, word[:limit])
			word = word[limit:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(word) > limit {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
