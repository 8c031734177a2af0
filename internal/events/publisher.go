package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"roles-service/internal/models"
	"roles-service/internal/policy"
)

// Event subjects
const (
	SubjectRoleAssigned     = "role.assigned"
	SubjectRoleRevoked      = "role.revoked"
	SubjectRoleActivated    = "role.activated"
	SubjectRoleDeactivated  = "role.deactivated"
	SubjectRequestCreated   = "rolerequest.created"
	SubjectRequestApproved  = "rolerequest.approved"
	SubjectRequestRejected  = "rolerequest.rejected"
	SubjectRequestCancelled = "rolerequest.cancelled"
)

// StreamRoles is the JetStream stream holding role lifecycle events.
const StreamRoles = "ROLE_EVENTS"

// RoleEvent is the payload published for every role mutation.
// Consumers (notification service, dashboards) are external.
type RoleEvent struct {
	EventID     string      `json:"eventId"`
	EventType   string      `json:"eventType"`
	TenantID    string      `json:"tenantId"`
	UserID      string      `json:"userId"`
	Role        policy.Role `json:"role,omitempty"`
	OldRole     policy.Role `json:"oldRole,omitempty"`
	RequestID   string      `json:"requestId,omitempty"`
	PerformedBy string      `json:"performedBy,omitempty"`
	District    string      `json:"district,omitempty"`
	OccurredAt  string      `json:"occurredAt"`
}

// Publisher publishes role lifecycle events to NATS JetStream. A nil
// Publisher is safe to call; events are then dropped, the service
// works without NATS.
type Publisher struct {
	js     nats.JetStreamContext
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the role event stream
// exists.
func NewPublisher(natsURL, name string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = js.StreamInfo(StreamRoles)
	if err == nats.ErrStreamNotFound {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamRoles,
			Subjects: []string{"role.>", "rolerequest.>"},
			Storage:  nats.FileStorage,
			MaxAge:   30 * 24 * time.Hour,
		})
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{
		js:     js,
		conn:   conn,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

// PublishAssignment publishes an assignment lifecycle event
// (assigned, revoked, activated, deactivated).
func (p *Publisher) PublishAssignment(subject string, assignment *models.UserRoleAssignment, performedBy uuid.UUID) {
	if p == nil {
		return
	}
	p.publish(subject, &RoleEvent{
		EventID:     uuid.New().String(),
		EventType:   subject,
		TenantID:    assignment.TenantID,
		UserID:      assignment.UserID.String(),
		Role:        assignment.Role,
		PerformedBy: performedBy.String(),
		District:    assignment.District,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishRequest publishes a request lifecycle event.
func (p *Publisher) PublishRequest(subject string, request *models.RoleChangeRequest, performedBy uuid.UUID) {
	if p == nil {
		return
	}
	p.publish(subject, &RoleEvent{
		EventID:     uuid.New().String(),
		EventType:   subject,
		TenantID:    request.TenantID,
		UserID:      request.TargetUserID.String(),
		Role:        request.RequestedRole,
		OldRole:     request.CurrentRole,
		RequestID:   request.ID.String(),
		PerformedBy: performedBy.String(),
		District:    request.District,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// publish sends the event asynchronously with a background context so
// a cancelled HTTP request cannot abort delivery. Failures are logged,
// never surfaced to the caller.
func (p *Publisher) publish(subject string, event *RoleEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to marshal role event")
			return
		}

		if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
			p.logger.WithFields(logrus.Fields{
				"subject":  subject,
				"tenantId": event.TenantID,
				"userId":   event.UserID,
			}).WithError(err).Error("Failed to publish role event")
			return
		}

		p.logger.WithFields(logrus.Fields{
			"subject":  subject,
			"tenantId": event.TenantID,
			"userId":   event.UserID,
		}).Info("Role event published")
	}()
}
