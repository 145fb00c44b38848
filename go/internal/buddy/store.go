package buddy

import (
	"context"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/mcdev12/focusnest/go/internal/session/events"
)

// Store is the data-layer boundary a participant drives. session.App
// satisfies it in-process and Client satisfies it over the network.
type Store interface {
	CreateSession(ctx context.Context, req session.CreateSessionRequest) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	JoinSession(ctx context.Context, req session.JoinSessionRequest) (*models.Session, error)
	StartSession(ctx context.Context, req session.StartSessionRequest) (*models.Session, error)
	ReportStatus(ctx context.Context, req session.ReportStatusRequest) (*models.Session, error)
	CompleteSession(ctx context.Context, req session.CompleteSessionRequest) (*models.Session, error)
	ServerTime(ctx context.Context) (time.Time, error)
	Subscribe(ctx context.Context, sessionID string, fn func(events.SessionEvent)) (func(), error)
}

var (
	_ Store = (*session.App)(nil)
	_ Store = (*Client)(nil)
)
