package archive

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
)

// ThreadInfo is the part of a thread the archiver needs.
type ThreadInfo struct {
	ID       discord.ChannelID
	Name     string
	ParentID discord.ChannelID
	Archived bool
}

// Source is where the archiver reads the server's channel hierarchy from.
type Source interface {
	Channel(ctx context.Context, id discord.ChannelID) (*discord.Channel, error)
	Channels(ctx context.Context, guildID discord.GuildID) ([]discord.Channel, error)
	// ActiveThreads returns all active threads in the guild.
	ActiveThreads(ctx context.Context, guildID discord.GuildID) ([]ThreadInfo, error)
	// ArchivedThreads returns all archived public or private threads in a channel.
	ArchivedThreads(ctx context.Context, channelID discord.ChannelID, private bool) ([]ThreadInfo, error)
	// ReopenThread unarchives a thread and joins it.
	ReopenThread(ctx context.Context, threadID discord.ChannelID) error
}

// StateSource is a Source backed by an arikawa state.
// Thread endpoints are called directly, as the response pagination fields are needed.
type StateSource struct {
	State *state.State
}

var _ Source = (*StateSource)(nil)

// archivedPageSize is the maximum number of threads Discord returns per page.
const archivedPageSize = 100

type threadList struct {
	Threads []threadChannel `json:"threads"`
	HasMore bool            `json:"has_more"`
}

type threadChannel struct {
	ID       discord.ChannelID `json:"id"`
	Name     string            `json:"name"`
	ParentID discord.ChannelID `json:"parent_id"`
	Metadata *struct {
		Archived         bool              `json:"archived"`
		ArchiveTimestamp discord.Timestamp `json:"archive_timestamp"`
	} `json:"thread_metadata"`
}

func (t threadChannel) info() ThreadInfo {
	return ThreadInfo{
		ID:       t.ID,
		Name:     t.Name,
		ParentID: t.ParentID,
		Archived: t.Metadata != nil && t.Metadata.Archived,
	}
}

func (s *StateSource) Channel(ctx context.Context, id discord.ChannelID) (*discord.Channel, error) {
	return s.State.WithContext(ctx).Channel(id)
}

func (s *StateSource) Channels(ctx context.Context, guildID discord.GuildID) ([]discord.Channel, error) {
	return s.State.WithContext(ctx).Channels(guildID)
}

func (s *StateSource) ActiveThreads(ctx context.Context, guildID discord.GuildID) ([]ThreadInfo, error) {
	var list threadList

	err := s.State.WithContext(ctx).RequestJSON(&list, "GET", api.EndpointGuilds+guildID.String()+"/threads/active")
	if err != nil {
		return nil, errors.Wrap(err, "listing active threads")
	}

	threads := make([]ThreadInfo, 0, len(list.Threads))
	for _, t := range list.Threads {
		threads = append(threads, t.info())
	}
	return threads, nil
}

func (s *StateSource) ArchivedThreads(ctx context.Context, channelID discord.ChannelID, private bool) ([]ThreadInfo, error) {
	kind := "public"
	if private {
		kind = "private"
	}

	var (
		threads []ThreadInfo
		before  time.Time
	)
	for {
		q := url.Values{"limit": {strconv.Itoa(archivedPageSize)}}
		if !before.IsZero() {
			q.Set("before", before.Format(time.RFC3339Nano))
		}

		var list threadList
		err := s.State.WithContext(ctx).RequestJSON(
			&list, "GET",
			api.EndpointChannels+channelID.String()+"/threads/archived/"+kind+"?"+q.Encode(),
		)
		if err != nil {
			// listing private threads needs Manage Threads, treat a missing permission as no threads
			var httpErr *httputil.HTTPError
			if private && errors.As(err, &httpErr) && httpErr.Status == http.StatusForbidden {
				return threads, nil
			}
			return nil, errors.Wrapf(err, "listing archived %v threads", kind)
		}

		for _, t := range list.Threads {
			threads = append(threads, t.info())
			if t.Metadata != nil {
				before = t.Metadata.ArchiveTimestamp.Time()
			}
		}

		if !list.HasMore || len(list.Threads) == 0 {
			return threads, nil
		}
	}
}

func (s *StateSource) ReopenThread(ctx context.Context, threadID discord.ChannelID) error {
	st := s.State.WithContext(ctx)

	err := st.FastRequest(
		"PATCH", api.EndpointChannels+threadID.String(),
		httputil.WithJSONBody(map[string]bool{"archived": false}),
	)
	if err != nil {
		return errors.Wrap(err, "unarchiving thread")
	}

	err = st.FastRequest("PUT", api.EndpointChannels+threadID.String()+"/thread-members/@me")
	if err != nil {
		return errors.Wrap(err, "joining thread")
	}
	return nil
}
