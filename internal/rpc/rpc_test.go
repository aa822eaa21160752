package rpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/otgla/internal/grammar"
)

// #region helpers
const ripText = `constraint [1]: "Trochee" 100
constraint [2]: "Iamb" 90
constraint [3]: "Parse" 80
input [1]: "|LL|"
	candidate [1]: "[L1 L] \-> /(L1 L)/" 0 1 0
	candidate [2]: "[L L1] \-> /(L L1)/" 1 0 0
	candidate [3]: "[L1 L] \-> /(L1) L/" 0 0 1
`

func startServer(t *testing.T, srv *Server) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor))
	RegisterGrammarServer(s, srv)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func ripServer(t *testing.T) *Server {
	t.Helper()
	g, err := grammar.ParseString(ripText, grammar.Options{RIP: true})
	require.NoError(t, err)
	srv, err := NewServer(g, g.Values(), "v1", 2, 1)
	require.NoError(t, err)
	return srv
}

// #endregion helpers

// #region round-trip-tests
func TestGenerateRoundTrip(t *testing.T) {
	c := startServer(t, ripServer(t))

	res, err := c.Generate(context.Background(), "[L1 L]", false)
	require.NoError(t, err)
	assert.Equal(t, "[L1 L]", res.Produced)
	assert.True(t, res.Matched)
	assert.Equal(t, "/(L1) L/", res.Parse)
	require.Len(t, res.Ranking, 3)
	assert.Equal(t, "Trochee", res.Ranking[0])
	assert.Equal(t, "v1", res.Version)
}

func TestRankingRoundTrip(t *testing.T) {
	srv := ripServer(t)
	c := startServer(t, srv)

	require.NoError(t, srv.SetSnapshot([]float64{70, 90, 80}, "v2"))
	got, err := c.Ranking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RankedConstraint{{"Iamb", 90}, {"Parse", 80}, {"Trochee", 70}}, got)

	res, err := c.Generate(context.Background(), "[L1 L]", false)
	require.NoError(t, err)
	assert.Equal(t, "[L L1]", res.Produced, "expected iambic output after swap")
	assert.False(t, res.Matched)
}

func TestGenerateUnknownForm(t *testing.T) {
	c := startServer(t, ripServer(t))

	_, err := c.Generate(context.Background(), "[H1 H]", false)
	assert.Equal(t, codes.NotFound, status.Code(errors.Unwrap(err)), "got %v", err)
}

func TestGenerateBadRequests(t *testing.T) {
	c := startServer(t, ripServer(t))

	for _, form := range []string{"", "L1 L", "x[L1 L]"} {
		_, err := c.Generate(context.Background(), form, false)
		assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)), "form %q: %v", form, err)
	}
}

func TestNoisyGenerateStillAnswers(t *testing.T) {
	c := startServer(t, ripServer(t))
	for i := 0; i < 20; i++ {
		res, err := c.Generate(context.Background(), "[L1 L]", true)
		require.NoError(t, err)
		assert.Contains(t, []string{"[L1 L]", "[L L1]"}, res.Produced)
	}
}

// #endregion round-trip-tests

// #region server-tests
func TestSetSnapshotLengthMismatch(t *testing.T) {
	srv := ripServer(t)
	assert.Error(t, srv.SetSnapshot([]float64{1}, "bad"))
}

// #endregion server-tests

// #region mock
type mockGrammarService struct {
	resp *structpb.Struct
	err  error
}

func (m *mockGrammarService) Generate(_ context.Context, _ *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return m.resp, m.err
}

func (m *mockGrammarService) Ranking(_ context.Context, _ *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return m.resp, m.err
}

// #endregion mock

// #region client-tests
func TestClientWrapsErrors(t *testing.T) {
	c := NewClientWithService(&mockGrammarService{err: errors.New("unavailable")})
	_, err := c.Generate(context.Background(), "[L1 L]", false)
	assert.Error(t, err)
	_, err = c.Ranking(context.Background())
	assert.Error(t, err)
	assert.NoError(t, c.Close(), "Close without connection")
}

func TestClientEmptyResponse(t *testing.T) {
	c := NewClientWithService(&mockGrammarService{resp: &structpb.Struct{}})
	got, err := c.Ranking(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

// #endregion client-tests
