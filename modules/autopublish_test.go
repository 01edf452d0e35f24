package modules

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/registry"
)

func TestAutoPublisher(t *testing.T) {
	crossposted := message("G1", "news", "M2", "U1")
	crossposted.Flags = discordgo.MessageFlagsCrossPosted

	tests := []struct {
		name      string
		event     *discordgo.MessageCreate
		wantCalls int
	}{
		{name: "announcement channel in set", event: message("G1", "news", "M1", "U1"), wantCalls: 1},
		{name: "text channel in set", event: message("G1", "text", "M1", "U1"), wantCalls: 0},
		{name: "announcement channel not in set", event: message("G1", "other-news", "M1", "U1"), wantCalls: 0},
		{name: "unknown guild", event: message("G9", "news", "M1", "U1"), wantCalls: 0},
		{name: "already crossposted", event: crossposted, wantCalls: 0},
		{name: "channel lookup fails", event: message("G1", "missing", "M1", "U1"), wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, fp := testEnv(map[string]registry.GuildSettings{
				"G1": {AutoPublisherChannels: []string{"news", "text", "missing"}},
			})
			fp.channels["news"] = discordgo.ChannelTypeGuildNews
			fp.channels["other-news"] = discordgo.ChannelTypeGuildNews
			fp.channels["text"] = discordgo.ChannelTypeGuildText
			hub := newFakeHub()

			m := NewAutoPublisher(env)
			if err := m.Register(hub); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			hub.emit(tt.event)

			calls := fp.Calls()
			if len(calls) != tt.wantCalls {
				t.Fatalf("calls = %#v, want %d", calls, tt.wantCalls)
			}
			if tt.wantCalls == 1 {
				if calls[0].Op != "crosspost" || calls[0].ChannelID != "news" || calls[0].MessageID != "M1" {
					t.Fatalf("unexpected call %#v", calls[0])
				}
			}
		})
	}
}
