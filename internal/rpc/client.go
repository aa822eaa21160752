package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// GenerateResult holds the response from a Generate RPC call.
type GenerateResult struct {
	Form     string
	Produced string
	Parse    string
	Matched  bool
	Ranking  []string
	Version  string
}

// RankedConstraint is one entry of a Ranking RPC response.
type RankedConstraint struct {
	Name  string
	Value float64
}

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to a grammar server.
type Client struct {
	conn   *grpc.ClientConn
	client GrammarClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to a grammar server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: NewGrammarClient(conn)}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc GrammarClient) *Client {
	return &Client{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region generate
// Generate asks the server what the grammar produces for form.
func (c *Client) Generate(ctx context.Context, form string, noise bool) (GenerateResult, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"form": form, "noise": noise})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate rpc: %w", err)
	}
	f := resp.GetFields()
	res := GenerateResult{
		Form:     f["form"].GetStringValue(),
		Produced: f["produced"].GetStringValue(),
		Parse:    f["parse"].GetStringValue(),
		Matched:  f["matched"].GetBoolValue(),
		Version:  f["version"].GetStringValue(),
	}
	for _, v := range f["ranking"].GetListValue().GetValues() {
		res.Ranking = append(res.Ranking, v.GetStringValue())
	}
	return res, nil
}

// #endregion generate

// #region ranking
// Ranking returns the served constraints, highest ranking value first.
func (c *Client) Ranking(ctx context.Context) ([]RankedConstraint, error) {
	resp, err := c.client.Ranking(ctx, &structpb.Struct{})
	if err != nil {
		return nil, fmt.Errorf("ranking rpc: %w", err)
	}
	var out []RankedConstraint
	for _, v := range resp.GetFields()["constraints"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		out = append(out, RankedConstraint{
			Name:  f["name"].GetStringValue(),
			Value: f["value"].GetNumberValue(),
		})
	}
	return out, nil
}

// #endregion ranking
