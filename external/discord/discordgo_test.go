package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestCommandNeedsUpdate(t *testing.T) {
	base := func() *discordgo.ApplicationCommand {
		return &discordgo.ApplicationCommand{
			Name:        "scrim-create",
			Description: "Schedule a scrim and post its signup message.",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Scrim title", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "start", Description: "Start time as a unix timestamp", Required: true},
			},
		}
	}

	if commandNeedsUpdate(base(), base()) {
		t.Fatal("expected identical commands to need no update")
	}

	changedDescription := base()
	changedDescription.Description = "different"
	if !commandNeedsUpdate(changedDescription, base()) {
		t.Fatal("expected description change to need an update")
	}

	changedOptionName := base()
	changedOptionName.Options[1].Name = "begin"
	if !commandNeedsUpdate(changedOptionName, base()) {
		t.Fatal("expected option rename with same count to need an update")
	}

	changedOptionRequired := base()
	changedOptionRequired.Options[1].Required = false
	if !commandNeedsUpdate(changedOptionRequired, base()) {
		t.Fatal("expected option required-flag change to need an update")
	}

	changedOptionDescription := base()
	changedOptionDescription.Options[0].Description = "different"
	if !commandNeedsUpdate(changedOptionDescription, base()) {
		t.Fatal("expected option description change to need an update")
	}

	droppedOption := base()
	droppedOption.Options = droppedOption.Options[:1]
	if !commandNeedsUpdate(droppedOption, base()) {
		t.Fatal("expected option count change to need an update")
	}
}

func TestStateMembersComplete(t *testing.T) {
	members := func(n int) []*discordgo.Member {
		out := make([]*discordgo.Member, n)
		for i := range out {
			out[i] = &discordgo.Member{User: &discordgo.User{ID: "u"}}
		}
		return out
	}

	cases := []struct {
		name  string
		guild *discordgo.Guild
		want  bool
	}{
		{name: "nil guild", guild: nil, want: false},
		{name: "empty cache", guild: &discordgo.Guild{MemberCount: 3}, want: false},
		{name: "partial chunk", guild: &discordgo.Guild{Members: members(2), MemberCount: 5}, want: false},
		{name: "unknown count", guild: &discordgo.Guild{Members: members(2)}, want: false},
		{name: "complete", guild: &discordgo.Guild{Members: members(3), MemberCount: 3}, want: true},
	}
	for _, tc := range cases {
		if got := stateMembersComplete(tc.guild); got != tc.want {
			t.Fatalf("%s: stateMembersComplete = %v, want %v", tc.name, got, tc.want)
		}
	}
}
