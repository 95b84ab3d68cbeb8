package checkrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"uclab.dev/conncheck/checkpoint"
	"uclab.dev/conncheck/lesson"
	"uclab.dev/conncheck/trace"
)

// Server implements the Checker service over the local evaluation
// pipeline. The pipeline is pure, so concurrent RPCs need no locking.
type Server struct {
	UnimplementedCheckerServer
}

func (s *Server) Check(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	_ = ctx
	fields := in.GetFields()

	raw := fields["trace"].GetStringValue()
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "missing trace")
	}

	var def checkpoint.Definition
	switch {
	case fields["ckdf"].GetStringValue() != "":
		d, err := lesson.ParseCKDF([]byte(fields["ckdf"].GetStringValue()))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		def = d
	case fields["definition"].GetStringValue() != "":
		d, err := lesson.Lookup(fields["definition"].GetStringValue())
		if err != nil {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		def = d
	default:
		return nil, status.Error(codes.InvalidArgument, "missing definition or ckdf")
	}

	events, err := trace.Extract(raw)
	if err != nil {
		if errors.Is(err, trace.ErrEmptyTrace) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	report := checkpoint.Evaluate(def, events)
	out, err := reportToStruct(report)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Lessons(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	_ = ctx
	names := lesson.Names()
	values := make([]interface{}, len(names))
	for i, n := range names {
		values[i] = n
	}
	return structpb.NewList(values)
}

func reportToStruct(r *checkpoint.Report) (*structpb.Struct, error) {
	outcomes := make([]interface{}, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		outcomes = append(outcomes, map[string]interface{}{
			"rule_id":  o.RuleID,
			"kind":     o.Kind,
			"describe": o.Describe,
			"optional": o.Optional,
			"status":   string(o.Status),
			"failure":  string(o.Failure),
			"detail":   o.Detail,
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"definition": r.Definition,
		"pass":       r.Pass,
		"outcomes":   outcomes,
	})
}
