package checkrpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"uclab.dev/conncheck/checkpoint"
)

// Client wraps the Checker service behind the local evaluation types.
type Client struct {
	cc     *grpc.ClientConn
	client CheckerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration
}

func Dial(target string, opts DialOptions) (*Client, error) {
	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	cc, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewCheckerClient(cc)}, nil
}

func (c *Client) Close() error { return c.cc.Close() }

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.Background(), func() {}
}

// Check submits a trace for evaluation against a built-in definition
// name or inline CKDF text (exactly one should be set).
func (c *Client) Check(definition, ckdf, rawTrace string) (*checkpoint.Report, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	req, err := structpb.NewStruct(map[string]interface{}{
		"definition": definition,
		"ckdf":       ckdf,
		"trace":      rawTrace,
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Check(ctx, req)
	if err != nil {
		return nil, err
	}
	return structToReport(resp), nil
}

// Lessons lists the server's built-in definition names.
func (c *Client) Lessons() ([]string, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	resp, err := c.client.Lessons(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range resp.GetValues() {
		if s := v.GetStringValue(); s != "" {
			names = append(names, s)
		}
	}
	return names, nil
}

func structToReport(s *structpb.Struct) *checkpoint.Report {
	fields := s.GetFields()
	r := &checkpoint.Report{
		Definition: fields["definition"].GetStringValue(),
		Pass:       fields["pass"].GetBoolValue(),
	}
	for _, v := range fields["outcomes"].GetListValue().GetValues() {
		o := v.GetStructValue().GetFields()
		r.Outcomes = append(r.Outcomes, checkpoint.RuleOutcome{
			RuleID:   o["rule_id"].GetStringValue(),
			Kind:     o["kind"].GetStringValue(),
			Describe: o["describe"].GetStringValue(),
			Optional: o["optional"].GetBoolValue(),
			Status:   checkpoint.Status(o["status"].GetStringValue()),
			Failure:  checkpoint.FailureKind(o["failure"].GetStringValue()),
			Detail:   o["detail"].GetStringValue(),
		})
	}
	return r
}
