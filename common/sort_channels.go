package common

import (
	"sort"

	"github.com/diamondburned/arikawa/v3/discord"
)

// SortChannels sorts the given channels into the order shown in the Discord client.
// Threads are dropped, as the client shows them under their parent channel instead.
// It returns a new slice, and does not modify the given slice in place.
func SortChannels(channels []discord.Channel) []discord.Channel {
	var (
		noCategory       = make([]discord.Channel, 0)
		categoryChannels = make([]discord.Channel, 0)
		categories       = make(map[discord.ChannelID][]discord.Channel, 0)
	)
	for _, ch := range channels {
		if ch.Type == discord.GuildCategory {
			categoryChannels = append(categoryChannels, ch)
			continue
		}

		if IsThread(ch) {
			continue
		}

		if !ch.ParentID.IsValid() {
			noCategory = append(noCategory, ch)
		} else {
			categories[ch.ParentID] = append(categories[ch.ParentID], ch)
		}
	}

	sortByPosition(noCategory)
	sortByPosition(categoryChannels)
	for cat := range categories {
		sortByPosition(categories[cat])
	}

	sorted := make([]discord.Channel, 0, len(channels))
	sorted = append(sorted, noCategory...)

	for _, cat := range categoryChannels {
		sorted = append(sorted, cat)
		sorted = append(sorted, categories[cat.ID]...)
	}

	return sorted
}

// CategoryTextChannels returns the text channels in the given category, in client order.
func CategoryTextChannels(channels []discord.Channel, categoryID discord.ChannelID) []discord.Channel {
	out := make([]discord.Channel, 0)
	for _, ch := range SortChannels(channels) {
		if ch.ParentID == categoryID && IsTextChannel(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// sortByPosition sorts channels by position, falling back to ID (creation order) for equal positions.
func sortByPosition(chs []discord.Channel) {
	sort.SliceStable(chs, func(i, j int) bool {
		if chs[i].Position != chs[j].Position {
			return chs[i].Position < chs[j].Position
		}
		return chs[i].ID < chs[j].ID
	})
}
