package actor

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/torosent/inferfire/internal/model"
)

// ServiceName is the fully-qualified gRPC service actors expose.
const ServiceName = "inferfire.Actor"

const predictFullMethod = "/" + ServiceName + "/Predict"

// PredictRequest carries one query to an actor.
type PredictRequest struct {
	ID    int64  `json:"id"`
	Input []byte `json:"input"`
}

// PredictReply carries the result back. Error marks a model failure inside
// the actor; transport problems surface as gRPC status errors instead.
type PredictReply struct {
	ID     int64  `json:"id"`
	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// predictor is the handler interface the ServiceDesc binds to.
type predictor interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictReply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*predictor)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inferfire/actor",
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PredictRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(predictor).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(predictor).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Server hosts one Model behind the Actor service. The model is constructed
// exactly once, at server construction, for the actor's whole lifetime.
type Server struct {
	model model.Model
	grpc  *grpc.Server
	log   zerolog.Logger
}

// NewServer builds the actor's model from its Spec.
func NewServer(spec model.Spec, log zerolog.Logger) (*Server, error) {
	m, err := model.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("build actor model: %w", err)
	}
	return &Server{model: m, log: log}, nil
}

// Predict answers one query. Model failures travel in-band so the caller can
// distinguish them from a broken transport.
func (s *Server) Predict(ctx context.Context, req *PredictRequest) (*PredictReply, error) {
	out, err := s.model.Predict(ctx, model.Input(req.Input))
	if err != nil {
		s.log.Debug().Int64("query_id", req.ID).Err(err).Msg("actor prediction failed")
		return &PredictReply{ID: req.ID, Error: err.Error()}, nil
	}
	return &PredictReply{ID: req.ID, Result: out}, nil
}

// Serve registers the service and blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	gs := grpc.NewServer()
	gs.RegisterService(&serviceDesc, s)
	s.grpc = gs
	return gs.Serve(lis)
}

// Stop forcibly terminates the server; in-flight calls are discarded.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.Stop()
	}
}
