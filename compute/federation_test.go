package compute_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
)

// callLog records which backends were invoked, in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(id string) {
	c.mu.Lock()
	c.calls = append(c.calls, id)
	c.mu.Unlock()
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func scripted(log *callLog, id string, answer string, err error) compute.Adapter {
	return compute.AdapterFunc{
		CompleteFunc: func(ctx context.Context, req *compute.Request) (string, error) {
			log.add(id)
			if err != nil {
				return "", err
			}
			return answer, nil
		},
	}
}

func createTestFederation(t *testing.T) *compute.Federation {
	t.Helper()
	return compute.New(
		compute.WithLogger(zerolog.Nop()),
		compute.WithRetrier(federation.NewRetrier(
			federation.WithUnit(time.Millisecond),
			federation.WithRetryLogger(zerolog.Nop()),
		)),
	)
}

func register(t *testing.T, f *compute.Federation, id string, priority int, adapter compute.Adapter) {
	t.Helper()
	require.NoError(t, f.Register(federation.DescriptorConfig{ID: id, Priority: priority}, adapter))
}

func TestProcessRequest_PrimarySuccess(t *testing.T) {
	f := createTestFederation(t)
	log := &callLog{}
	register(t, f, "openai", 95, scripted(log, "openai", "hello there", nil))
	register(t, f, "local", 80, scripted(log, "local", "unused", nil))

	res, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText, Content: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "hello there", res.Result)
	assert.Equal(t, 0.95, res.Quality)
	// json("hello there") is 13 bytes -> 3.25 tokens at 0.001
	assert.InDelta(t, 0.00325, res.Cost, 1e-9)
	assert.Regexp(t, regexp.MustCompile(`^req_\d+_[0-9a-f]{8}$`), res.ID)
	assert.Equal(t, []string{"openai"}, log.get())

	m := f.ListBackends()[0]
	assert.Equal(t, int64(1), m.Metrics.RequestCount)
}

func TestProcessRequest_KeepsCallerID(t *testing.T) {
	f := createTestFederation(t)
	register(t, f, "openai", 95, scripted(&callLog{}, "openai", "ok", nil))

	req := &compute.Request{ID: "req-42", Type: compute.TypeText}
	res, err := f.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "req-42", res.ID)
}

func TestProcessRequest_AffinityRoutesMathToDeepseek(t *testing.T) {
	f := createTestFederation(t)
	log := &callLog{}
	register(t, f, "openai", 95, scripted(log, "openai", "a", nil))
	register(t, f, "deepseek", 90, scripted(log, "deepseek", "42", nil))

	res, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeMath, Content: "6*7"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", res.Provider)
}

func TestProcessRequest_FallbackWalksAscendingPriority(t *testing.T) {
	f := createTestFederation(t)
	log := &callLog{}
	down := errors.New("503")
	register(t, f, "a", 95, scripted(log, "a", "", down))
	register(t, f, "b", 90, scripted(log, "b", "from b", nil))
	register(t, f, "c", 70, scripted(log, "c", "", down))

	res, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText, Content: "q"})
	require.NoError(t, err)

	assert.Equal(t, "b-fallback", res.Provider)
	assert.Equal(t, 0.8, res.Quality)
	assert.Equal(t, []string{"a", "a", "a", "c", "c", "c", "b"}, log.get())
}

func TestProcessRequest_AllProvidersFailed(t *testing.T) {
	f := createTestFederation(t)
	log := &callLog{}
	boom := errors.New("boom")
	register(t, f, "a", 95, scripted(log, "a", "", boom))
	register(t, f, "b", 70, scripted(log, "b", "", boom))

	_, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText})

	var failed *federation.AllProvidersFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{"a", "b"}, failed.Tried)
	assert.ErrorIs(t, err, boom)

	var exhausted *federation.ExhaustedError
	assert.ErrorAs(t, err, &exhausted)

	for _, st := range f.ListBackends() {
		assert.False(t, st.Healthy, "%s should be marked unhealthy after exhaustion", st.ID)
	}

	// Nothing healthy is left for the next request.
	_, err = f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText})
	assert.ErrorIs(t, err, federation.ErrNoHealthyBackend)
}

func TestProcessRequest_NoHealthyBackend(t *testing.T) {
	f := createTestFederation(t)

	_, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText})
	assert.ErrorIs(t, err, federation.ErrNoHealthyBackend)
}

func TestProcessRequest_ResultNamesHealthyProvider(t *testing.T) {
	f := createTestFederation(t)
	log := &callLog{}
	register(t, f, "sick", 99, compute.AdapterFunc{
		CompleteFunc: func(ctx context.Context, req *compute.Request) (string, error) { return "x", nil },
		ProbeFunc:    func(ctx context.Context) error { return errors.New("down") },
	})
	register(t, f, "fine", 10, scripted(log, "fine", "ok", nil))

	f.CheckHealth(context.Background())

	res, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText})
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Provider)
}

func TestProcessRequest_CustomPolicies(t *testing.T) {
	f := compute.New(
		compute.WithLogger(zerolog.Nop()),
		compute.WithCostFunc(func(*federation.Descriptor, any) float64 { return 7 }),
		compute.WithQualityFunc(func(any, bool) float64 { return 0.5 }),
	)
	register(t, f, "openai", 95, scripted(&callLog{}, "openai", "ok", nil))

	res, err := f.ProcessRequest(context.Background(), &compute.Request{Type: compute.TypeText})
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.Cost)
	assert.Equal(t, 0.5, res.Quality)
}

func TestRegister_Duplicate(t *testing.T) {
	f := createTestFederation(t)
	register(t, f, "openai", 95, scripted(&callLog{}, "openai", "", nil))

	err := f.Register(federation.DescriptorConfig{ID: "openai"}, scripted(&callLog{}, "openai", "", nil))
	var dup *federation.DuplicateBackendError
	assert.ErrorAs(t, err, &dup)
}
