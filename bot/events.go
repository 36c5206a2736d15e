package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/starshine-sys/archiver/common"
)

// connectMessage returns the message sent to the owner when the bot connects.
func connectMessage(first bool, t time.Time) string {
	if first {
		return fmt.Sprintf("Logged in at <t:%v:f>!", t.Unix())
	}
	return fmt.Sprintf("Reconnected at <t:%v:f>!", t.Unix())
}

func (bot *Bot) ready(s *state.State, ev *gateway.ReadyEvent) {
	common.Log.Infof("Ready as %v#%v in %v guilds", ev.User.Username, ev.User.Discriminator, len(ev.Guilds))

	bot.initLoadMu.Lock()
	first := bot.initLoad
	bot.initLoad = false
	bot.initLoadMu.Unlock()

	bot.dmOwner(s, connectMessage(first, time.Now()))
	bot.setStatus(s)
}

func (bot *Bot) resumed(s *state.State) {
	common.Log.Infof("Resumed gateway connection")
	bot.setStatus(s)
}

// presence is the bot's status while connected.
func presence() *gateway.UpdatePresenceCommand {
	return &gateway.UpdatePresenceCommand{
		Status: discord.OnlineStatus,
		Activities: []discord.Activity{{
			Name:  "Status",
			Type:  discord.CustomActivity,
			State: "Archiving servers",
		}},
	}
}

func (bot *Bot) setStatus(s *state.State) {
	ctx, cancel := context.WithTimeout(bot.ctx, 10*time.Second)
	defer cancel()

	err := s.Gateway().Send(ctx, presence())
	if err != nil {
		common.Log.Errorf("Error setting status: %v", err)
	}
}

// dmOwner sends a direct message to the bot owner. Errors are only logged.
func (bot *Bot) dmOwner(s *state.State, content string) {
	if !bot.Config.Auth.Owner.IsValid() {
		return
	}

	ch, err := s.CreatePrivateChannel(bot.Config.Auth.Owner)
	if err != nil {
		common.Log.Errorf("Error creating DM channel with owner: %v", err)
		return
	}

	if len(content) > 2000 {
		content = content[:1997] + "..."
	}

	_, err = s.SendMessage(ch.ID, content)
	if err != nil {
		common.Log.Errorf("Error sending DM to owner: %v", err)
	}
}
