package session

import (
	"encoding/json"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const (
	// SessionServiceName is the fully-qualified name of the session RPC service.
	SessionServiceName = "focusnest.session.v1.SessionService"
	// ClockServiceName is the fully-qualified name of the server clock RPC service.
	ClockServiceName = "focusnest.clock.v1.ClockService"
)

// Procedure paths, in the form connect expects them.
const (
	CreateSessionProcedure   = "/" + SessionServiceName + "/CreateSession"
	GetSessionProcedure      = "/" + SessionServiceName + "/GetSession"
	JoinSessionProcedure     = "/" + SessionServiceName + "/JoinSession"
	StartSessionProcedure    = "/" + SessionServiceName + "/StartSession"
	ReportStatusProcedure    = "/" + SessionServiceName + "/ReportStatus"
	CompleteSessionProcedure = "/" + SessionServiceName + "/CompleteSession"
	ServerTimeProcedure      = "/" + ClockServiceName + "/ServerTime"
)

// JSONCodec marshals plain Go request types with encoding/json and protobuf
// messages with protojson. It replaces connect's built-in "json" codec, which
// only accepts protobuf messages.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	if m, ok := msg.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if m, ok := msg.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, msg)
}

// WithJSONCodec is the connect option both handlers and clients must carry.
func WithJSONCodec() connect.Option {
	return connect.WithCodec(JSONCodec{})
}
