package buddy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/focusnest/go/internal/gateway"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for RPCs.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithParticipant identifies the caller on websocket subscriptions so the
// server accepts status frames from it.
func WithParticipant(participantID string) ClientOption {
	return func(c *Client) { c.participantID = participantID }
}

// WithDialer overrides the websocket dialer.
func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = dialer }
}

// Client talks to a focusnest server: connect RPCs for reads and writes,
// a websocket per subscription for change notifications.
type Client struct {
	baseURL       string
	participantID string
	httpClient    *http.Client
	dialer        *websocket.Dialer

	createSession   *connect.Client[session.CreateSessionRequest, session.CreateSessionResponse]
	getSession      *connect.Client[session.GetSessionRequest, session.SessionResponse]
	joinSession     *connect.Client[session.JoinSessionRequest, session.SessionResponse]
	startSession    *connect.Client[session.StartSessionRequest, session.SessionResponse]
	reportStatus    *connect.Client[session.ReportStatusRequest, session.SessionResponse]
	completeSession *connect.Client[session.CompleteSessionRequest, session.SessionResponse]
	serverTime      *connect.Client[emptypb.Empty, timestamppb.Timestamp]

	// deepLinks remembers the link returned for sessions this client created
	deepLinks sync.Map
}

// NewClient creates a client for the server at baseURL (http or https).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}

	codec := session.WithJSONCodec()
	c.createSession = connect.NewClient[session.CreateSessionRequest, session.CreateSessionResponse](
		c.httpClient, c.baseURL+session.CreateSessionProcedure, codec)
	c.getSession = connect.NewClient[session.GetSessionRequest, session.SessionResponse](
		c.httpClient, c.baseURL+session.GetSessionProcedure, codec)
	c.joinSession = connect.NewClient[session.JoinSessionRequest, session.SessionResponse](
		c.httpClient, c.baseURL+session.JoinSessionProcedure, codec)
	c.startSession = connect.NewClient[session.StartSessionRequest, session.SessionResponse](
		c.httpClient, c.baseURL+session.StartSessionProcedure, codec)
	c.reportStatus = connect.NewClient[session.ReportStatusRequest, session.SessionResponse](
		c.httpClient, c.baseURL+session.ReportStatusProcedure, codec)
	c.completeSession = connect.NewClient[session.CompleteSessionRequest, session.SessionResponse](
		c.httpClient, c.baseURL+session.CompleteSessionProcedure, codec)
	c.serverTime = connect.NewClient[emptypb.Empty, timestamppb.Timestamp](
		c.httpClient, c.baseURL+session.ServerTimeProcedure, codec)
	return c
}

func (c *Client) CreateSession(ctx context.Context, req session.CreateSessionRequest) (*models.Session, error) {
	res, err := c.createSession.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return nil, classify(err)
	}
	c.deepLinks.Store(res.Msg.Session.ID, res.Msg.DeepLink)
	return res.Msg.Session, nil
}

// DeepLink returns the link the server issued for a session this client created.
func (c *Client) DeepLink(sessionID string) (string, bool) {
	link, ok := c.deepLinks.Load(sessionID)
	if !ok {
		return "", false
	}
	return link.(string), true
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	res, err := c.getSession.CallUnary(ctx, connect.NewRequest(&session.GetSessionRequest{SessionID: id}))
	if err != nil {
		return nil, classify(err)
	}
	return res.Msg.Session, nil
}

func (c *Client) JoinSession(ctx context.Context, req session.JoinSessionRequest) (*models.Session, error) {
	res, err := c.joinSession.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return nil, classify(err)
	}
	return res.Msg.Session, nil
}

func (c *Client) StartSession(ctx context.Context, req session.StartSessionRequest) (*models.Session, error) {
	res, err := c.startSession.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return nil, classify(err)
	}
	return res.Msg.Session, nil
}

func (c *Client) ReportStatus(ctx context.Context, req session.ReportStatusRequest) (*models.Session, error) {
	res, err := c.reportStatus.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return nil, classify(err)
	}
	return res.Msg.Session, nil
}

func (c *Client) CompleteSession(ctx context.Context, req session.CompleteSessionRequest) (*models.Session, error) {
	res, err := c.completeSession.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return nil, classify(err)
	}
	return res.Msg.Session, nil
}

func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	res, err := c.serverTime.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return time.Time{}, classify(err)
	}
	return res.Msg.AsTime(), nil
}

// Subscribe opens a websocket for sessionID and calls fn for the initial
// snapshot and every change after it. fn runs on the reader goroutine. The
// returned func closes the socket; it is safe to call more than once.
func (c *Client) Subscribe(ctx context.Context, sessionID string, fn func(events.SessionEvent)) (func(), error) {
	wsURL, err := c.subscriptionURL(sessionID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", ErrInvalidLink, session.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
	}

	go c.readFrames(conn, sessionID, fn)
	return unsubscribe, nil
}

func (c *Client) readFrames(conn *websocket.Conn, sessionID string, fn func(events.SessionEvent)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("session_id", sessionID).Msg("subscription closed")
			}
			return
		}

		var frame gateway.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("ignoring malformed frame")
			continue
		}
		fn(frameToEvent(frame))
	}
}

func frameToEvent(frame gateway.Frame) events.SessionEvent {
	ev := events.SessionEvent{
		SessionID: frame.SessionID,
		Type:      frame.EventType,
		Timestamp: frame.Timestamp,
		Session:   frame.Session,
	}
	if frame.Type == gateway.FrameTypeSnapshot {
		ev.Type = events.EventTypeSnapshot
	}
	if id, err := uuid.Parse(frame.EventID); err == nil {
		ev.ID = id
	}
	return ev
}

func (c *Client) subscriptionURL(sessionID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/session"

	q := url.Values{}
	q.Set("session_id", sessionID)
	if c.participantID != "" {
		q.Set("participant_id", c.participantID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
