package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/otgla/internal/generate"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
)

// #region server-struct
// Server answers grammar queries against a frozen snapshot of ranking
// values. The snapshot can be replaced while serving.
type Server struct {
	g        *grammar.Grammar
	strategy generate.Strategy
	sigma    float64

	mu      sync.RWMutex
	values  []float64
	version string

	engineMu sync.Mutex
	engine   *rank.Engine
}

// NewServer serves g with the given ranking values. sigma is the noise
// applied when a request asks for it.
func NewServer(g *grammar.Grammar, values []float64, version string, sigma float64, seed uint64) (*Server, error) {
	s := &Server{
		g:        g,
		strategy: generate.ForGrammar(g),
		sigma:    sigma,
		engine:   rank.NewSeededEngine(seed),
	}
	if err := s.SetSnapshot(values, version); err != nil {
		return nil, err
	}
	return s, nil
}

// SetSnapshot swaps in new ranking values.
func (s *Server) SetSnapshot(values []float64, version string) error {
	if len(values) != len(s.g.Constraints) {
		return fmt.Errorf("snapshot has %d values for %d constraints", len(values), len(s.g.Constraints))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append([]float64(nil), values...)
	s.version = version
	return nil
}

func (s *Server) snapshot() ([]float64, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values, s.version
}

func (s *Server) ranking(values []float64, noisy bool) rank.Ranking {
	if !noisy || s.sigma <= 0 {
		return rank.Canonical(values)
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.engine.Rank(values, s.sigma)
}

// #endregion server-struct

// #region generate
// Generate implements GrammarServer.
func (s *Server) Generate(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	form := fields["form"].GetStringValue()
	if form == "" {
		return nil, status.Error(codes.InvalidArgument, "form is required")
	}
	values, version := s.snapshot()
	r := s.ranking(values, fields["noise"].GetBoolValue())

	produced, err := s.strategy.Produce(form, r)
	if err != nil {
		return nil, toStatus(err)
	}
	out := map[string]interface{}{
		"form":     form,
		"produced": produced,
		"matched":  produced == form,
		"ranking":  toList(r.Names(s.g.Names())),
		"version":  version,
	}
	if s.g.RIP {
		parse, err := generate.FromOvert(produced, r, s.g.Overts)
		if err != nil {
			return nil, toStatus(err)
		}
		out["parse"] = parse.ID
	}
	return structpb.NewStruct(out)
}

// #endregion generate

// #region ranking
// Ranking implements GrammarServer.
func (s *Server) Ranking(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	values, version := s.snapshot()
	names := s.g.Names()
	order := rank.Canonical(values).Order()

	constraints := make([]interface{}, len(order))
	for i, c := range order {
		constraints[i] = map[string]interface{}{"name": names[c], "value": values[c]}
	}
	mode := "direct"
	if s.g.RIP {
		mode = "rip"
	}
	return structpb.NewStruct(map[string]interface{}{
		"mode":        mode,
		"version":     version,
		"constraints": constraints,
	})
}

// #endregion ranking

// #region helpers
func toList(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toStatus(err error) error {
	var le *grammar.LookupError
	var fe *grammar.FormatError
	switch {
	case errors.As(err, &le):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &fe):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs every unary call with its duration and code.
func LoggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("%s %s (%s)", info.FullMethod, status.Code(err), time.Since(start).Round(time.Microsecond))
	return resp, err
}

// #endregion helpers
