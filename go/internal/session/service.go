package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SessionApp defines what the service layer needs from the session application
type SessionApp interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	JoinSession(ctx context.Context, req JoinSessionRequest) (*models.Session, error)
	StartSession(ctx context.Context, req StartSessionRequest) (*models.Session, error)
	ReportStatus(ctx context.Context, req ReportStatusRequest) (*models.Session, error)
	CompleteSession(ctx context.Context, req CompleteSessionRequest) (*models.Session, error)
	ServerTime(ctx context.Context) (time.Time, error)
	Policy() Policy
}

// Service implements the SessionService and ClockService RPC surfaces
type Service struct {
	app SessionApp
}

// NewService creates a new session RPC service
func NewService(app SessionApp) *Service {
	return &Service{
		app: app,
	}
}

// CreateSession opens a waiting session and returns its shareable link
func (s *Service) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error) {
	session, err := s.app.CreateSession(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CreateSessionResponse{
		Session:  session,
		DeepLink: BuildDeepLink(s.app.Policy().DeepLinkScheme, session.ID),
	}), nil
}

// GetSession retrieves a session by ID
func (s *Service) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error) {
	session, err := s.app.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) JoinSession(ctx context.Context, req *connect.Request[JoinSessionRequest]) (*connect.Response[SessionResponse], error) {
	session, err := s.app.JoinSession(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) StartSession(ctx context.Context, req *connect.Request[StartSessionRequest]) (*connect.Response[SessionResponse], error) {
	session, err := s.app.StartSession(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) ReportStatus(ctx context.Context, req *connect.Request[ReportStatusRequest]) (*connect.Response[SessionResponse], error) {
	session, err := s.app.ReportStatus(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) CompleteSession(ctx context.Context, req *connect.Request[CompleteSessionRequest]) (*connect.Response[SessionResponse], error) {
	session, err := s.app.CompleteSession(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

// ServerTime returns the authoritative server clock
func (s *Service) ServerTime(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[timestamppb.Timestamp], error) {
	now, err := s.app.ServerTime(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(timestamppb.New(now)), nil
}

// HandleDeepLink resolves GET /buddy/{id} to the app's custom-scheme link.
func (s *Service) HandleDeepLink(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.app.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrInvalidArgument) {
			http.Error(w, "invalid or expired link", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", id).Msg("failed to resolve deep link")
		http.Error(w, "failed to resolve link", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, BuildDeepLink(s.app.Policy().DeepLinkScheme, id), http.StatusFound)
}

// RegisterRoutes mounts the session and clock procedures plus the deep-link
// landing route on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)

	mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, s.CreateSession, opts...))
	mux.Handle(GetSessionProcedure, connect.NewUnaryHandler(GetSessionProcedure, s.GetSession, opts...))
	mux.Handle(JoinSessionProcedure, connect.NewUnaryHandler(JoinSessionProcedure, s.JoinSession, opts...))
	mux.Handle(StartSessionProcedure, connect.NewUnaryHandler(StartSessionProcedure, s.StartSession, opts...))
	mux.Handle(ReportStatusProcedure, connect.NewUnaryHandler(ReportStatusProcedure, s.ReportStatus, opts...))
	mux.Handle(CompleteSessionProcedure, connect.NewUnaryHandler(CompleteSessionProcedure, s.CompleteSession, opts...))
	mux.Handle(ServerTimeProcedure, connect.NewUnaryHandler(ServerTimeProcedure, s.ServerTime, opts...))

	mux.HandleFunc("GET /buddy/{id}", s.HandleDeepLink)
}

// toConnectError maps session errors onto connect status codes
func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrNotCreator), errors.Is(err, ErrNotParticipant):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, ErrSessionExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrFriendNotJoined),
		errors.Is(err, ErrSessionFull),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrCountdownRunning):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		log.Error().Err(err).Msg("session rpc failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}

// FromConnectError maps a connect status back onto the matching session
// error so callers on the client side can use errors.Is.
func FromConnectError(err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch connect.CodeOf(err) {
	case connect.CodeNotFound:
		sentinel = ErrSessionNotFound
	case connect.CodeInvalidArgument:
		sentinel = ErrInvalidArgument
	case connect.CodeAlreadyExists:
		sentinel = ErrSessionExists
	case connect.CodePermissionDenied:
		sentinel = ErrNotParticipant
		if containsMessage(err, ErrNotCreator) {
			sentinel = ErrNotCreator
		}
	case connect.CodeFailedPrecondition:
		sentinel = ErrInvalidTransition
		for _, candidate := range []error{ErrFriendNotJoined, ErrSessionFull, ErrSessionClosed, ErrCountdownRunning} {
			if containsMessage(err, candidate) {
				sentinel = candidate
				break
			}
		}
	default:
		return err
	}
	return &remoteError{sentinel: sentinel, cause: err}
}

func containsMessage(err, sentinel error) bool {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return false
	}
	return strings.Contains(connectErr.Message(), sentinel.Error())
}

// remoteError keeps the connect error for display while matching a sentinel.
type remoteError struct {
	sentinel error
	cause    error
}

func (e *remoteError) Error() string { return e.cause.Error() }

func (e *remoteError) Unwrap() []error { return []error{e.sentinel, e.cause} }
