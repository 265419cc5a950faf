package federation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
)

func members(descs ...*federation.Descriptor) []*federation.Member[*probeAdapter] {
	out := make([]*federation.Member[*probeAdapter], len(descs))
	for i, d := range descs {
		out[i] = &federation.Member[*probeAdapter]{Descriptor: d, Adapter: &probeAdapter{}}
	}
	return out
}

func ids(ms []*federation.Member[*probeAdapter]) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID()
	}
	return out
}

func TestSelect_NoHealthyBackend(t *testing.T) {
	down := newDesc("a", 1)
	down.RecordProbe(0, errors.New("down"))

	got, err := federation.Select("text", members(down), federation.DefaultAffinity())
	require.ErrorIs(t, err, federation.ErrNoHealthyBackend)
	assert.Nil(t, got)

	_, err = federation.Select[*probeAdapter]("text", nil, nil)
	require.ErrorIs(t, err, federation.ErrNoHealthyBackend)
}

func TestSelect_PriorityOrderWithIDTieBreak(t *testing.T) {
	got, err := federation.Select("text", members(
		newDesc("gemini", 88),
		newDesc("openai", 95),
		newDesc("beta", 88),
		newDesc("local", 80),
	), federation.DefaultAffinity())
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "beta", "gemini", "local"}, ids(got))
}

func TestSelect_AffinityLeads(t *testing.T) {
	got, err := federation.Select("math", members(
		newDesc("openai", 95),
		newDesc("anthropic", 92),
		newDesc("deepseek", 90),
	), federation.DefaultAffinity())
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek", "openai", "anthropic"}, ids(got))
}

func TestSelect_UnhealthyAffinityIsSkipped(t *testing.T) {
	deepseek := newDesc("deepseek", 90)
	deepseek.RecordProbe(0, errors.New("down"))

	got, err := federation.Select("code", members(
		newDesc("openai", 95),
		deepseek,
		newDesc("anthropic", 92),
	), federation.DefaultAffinity())
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "anthropic"}, ids(got))
}

func TestSelect_CapabilityTagPromotesWithoutAffinity(t *testing.T) {
	got, err := federation.Select("evidence", members(
		newDesc("openai", 95),
		newDesc("local", 80, "evidence"),
		newDesc("anthropic", 92, "evidence"),
	), federation.DefaultAffinity())
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "openai", "local"}, ids(got))
}

func TestSortByPriority_Ascending(t *testing.T) {
	ms := members(newDesc("a", 95), newDesc("b", 70), newDesc("c", 90))
	federation.SortByPriority(ms, false)
	assert.Equal(t, []string{"b", "c", "a"}, ids(ms))
}
