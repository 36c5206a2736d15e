package common

import "github.com/diamondburned/arikawa/v3/discord"

// IsThread returns true if ch is any kind of thread.
func IsThread(ch discord.Channel) bool {
	return ch.Type == discord.GuildNewsThread || ch.Type == discord.GuildPrivateThread || ch.Type == discord.GuildPublicThread
}

// IsTextChannel returns true if ch is a guild channel with its own message history that can hold threads.
func IsTextChannel(ch discord.Channel) bool {
	return ch.Type == discord.GuildText || ch.Type == discord.GuildNews
}
