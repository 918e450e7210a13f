package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/keshon/lapis-music/internal/storage"
)

type stubCommand struct {
	name    string
	aliases []string
	err     error
	runs    int
}

func (c *stubCommand) Name() string        { return c.name }
func (c *stubCommand) Description() string { return "stub " + c.name }
func (c *stubCommand) Aliases() []string   { return c.aliases }
func (c *stubCommand) Run(context.Context, *Invocation) error {
	c.runs++
	return c.err
}
func (c *stubCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.name, Description: c.Description()}
}

type recordingReply struct {
	texts []string
}

func (r *recordingReply) Defer() error                                 { return nil }
func (r *recordingReply) Embed(*discordgo.MessageEmbed) error          { return nil }
func (r *recordingReply) EmbedEphemeral(*discordgo.MessageEmbed) error { return nil }
func (r *recordingReply) Text(content string) error {
	r.texts = append(r.texts, content)
	return nil
}

type memLog struct {
	mu      sync.Mutex
	records map[string][]storage.CommandHistoryRecord
	fail    bool
}

func (m *memLog) AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	if m.records == nil {
		m.records = make(map[string][]storage.CommandHistoryRecord)
	}
	m.records[guildID] = append(m.records[guildID], rec)
	return nil
}

func TestRegistryLookupAndOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(Apply(&stubCommand{name: "skip"}, WithGuildOnly()))
	r.Register(&stubCommand{name: "nowplaying", aliases: []string{"np"}})
	r.Register(&stubCommand{name: "Play", aliases: []string{"p"}})

	c, ok := r.Get("NP")
	require.True(t, ok)
	assert.Equal(t, "nowplaying", c.Name())

	_, ok = r.Get("p")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)

	var names []string
	for _, c := range r.GetAll() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"Play", "nowplaying", "skip"}, names)

	defs := r.SlashDefinitions()
	require.Len(t, defs, 3)
	assert.Equal(t, discordgo.ChatApplicationCommand, defs[0].Type)
}

func TestRootUnwrapsMiddleware(t *testing.T) {
	inner := &stubCommand{name: "loop"}
	wrapped := Apply(inner, WithGuildOnly(), WithCommandLogger(nil, nil))

	assert.Same(t, Command(inner), Root(wrapped))
	assert.Equal(t, "loop", wrapped.Name())
	assert.Equal(t, "stub loop", wrapped.Description())
}

func TestGuildOnly(t *testing.T) {
	inner := &stubCommand{name: "stop"}
	c := Apply(inner, WithGuildOnly())
	reply := &recordingReply{}

	require.NoError(t, c.Run(context.Background(), &Invocation{Reply: reply}))
	assert.Equal(t, 0, inner.runs)
	assert.Len(t, reply.texts, 1)

	require.NoError(t, c.Run(context.Background(), &Invocation{GuildID: "g1", Reply: reply}))
	assert.Equal(t, 1, inner.runs)
}

func TestCommandLoggerRecordsOutcome(t *testing.T) {
	store := &memLog{}
	boom := errors.New("boom")
	inner := &stubCommand{name: "play", err: boom}
	c := Apply(inner, WithCommandLogger(store, zaptest.NewLogger(t)))

	err := c.Run(context.Background(), &Invocation{
		GuildID:   "g1",
		ChannelID: "c1",
		UserID:    "u1",
		Username:  "ann",
		Args:      []string{"never", "gonna"},
	})
	assert.ErrorIs(t, err, boom)

	require.Len(t, store.records["g1"], 1)
	rec := store.records["g1"][0]
	assert.Equal(t, "play", rec.Command)
	assert.Equal(t, "never gonna", rec.Param)
	assert.Equal(t, "u1", rec.UserID)
	assert.False(t, rec.Datetime.IsZero())

	require.NoError(t, Apply(&stubCommand{name: "help"}, WithCommandLogger(store, nil)).Run(context.Background(), &Invocation{}))
	assert.Len(t, store.records, 1)
}

func TestCommandLoggerIgnoresStoreFailure(t *testing.T) {
	c := Apply(&stubCommand{name: "skip"}, WithCommandLogger(&memLog{fail: true}, zaptest.NewLogger(t)))
	assert.NoError(t, c.Run(context.Background(), &Invocation{GuildID: "g1"}))
}

func TestInvocationArg(t *testing.T) {
	inv := &Invocation{Args: []string{"a"}}
	assert.Equal(t, "a", inv.Arg(0))
	assert.Equal(t, "", inv.Arg(1))
	assert.Equal(t, "", inv.Arg(-1))
}

type guardedCommand struct {
	stubCommand
	perms []int64
}

func (c *guardedCommand) UserPermissions() []int64 { return c.perms }

func TestUserPermissionCheck(t *testing.T) {
	inner := &guardedCommand{stubCommand: stubCommand{name: "247"}, perms: []int64{discordgo.PermissionManageGuild}}
	c := Apply(inner, WithUserPermissionCheck())
	reply := &recordingReply{}

	require.NoError(t, c.Run(context.Background(), &Invocation{GuildID: "g1", Reply: reply}))
	assert.Equal(t, 0, inner.runs)
	require.Len(t, reply.texts, 1)
	assert.Contains(t, reply.texts[0], "Manage Server")

	require.NoError(t, c.Run(context.Background(), &Invocation{GuildID: "g1", Permissions: discordgo.PermissionManageGuild, Reply: reply}))
	require.NoError(t, c.Run(context.Background(), &Invocation{GuildID: "g1", Permissions: discordgo.PermissionAdministrator, Reply: reply}))
	assert.Equal(t, 2, inner.runs)

	open := &stubCommand{name: "skip"}
	require.NoError(t, Apply(open, WithUserPermissionCheck()).Run(context.Background(), &Invocation{GuildID: "g1"}))
	assert.Equal(t, 1, open.runs)
}
