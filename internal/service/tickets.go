package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/metrics"
	"github.com/bcnelson/support-portal/internal/responder"
	"github.com/bcnelson/support-portal/internal/storage"
	"go.uber.org/zap"
)

const ticketCreatedMessage = "Ticket created successfully"

// TicketService manages support tickets and their threads.
type TicketService struct {
	store   storage.Storage
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTicketService creates a new TicketService.
func NewTicketService(store storage.Storage, log *zap.Logger, m *metrics.Metrics) *TicketService {
	return &TicketService{
		store:   store,
		log:     log.Named("tickets"),
		metrics: m,
		now:     time.Now,
	}
}

// Create opens a ticket for customerID. If the auto-responder has a reply, the
// reply is stored as the first, non-agent response in the same transaction.
func (s *TicketService) Create(ctx context.Context, customerID string, req *domain.CreateTicketRequest) (*domain.CreateTicketResponse, error) {
	category := req.Category
	if category == "" {
		category = domain.DefaultTicketCategory
	}

	reply, topic, hasReply := responder.Reply(req.Subject, req.Message)
	now := s.now().UTC()

	ticket := &domain.Ticket{
		CustomerID:  customerID,
		Subject:     req.Subject,
		Message:     req.Message,
		Category:    category,
		Status:      domain.TicketStatusOpen,
		AIResponded: hasReply,
		CreatedAt:   now,
	}

	err := inTx(ctx, s.store, func(tx storage.Transaction) error {
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return fmt.Errorf("creating ticket: %w", err)
		}
		if !hasReply {
			return nil
		}
		resp := &domain.TicketResponse{
			TicketID:  ticket.ID,
			FromAgent: false,
			Message:   reply,
			CreatedAt: now,
		}
		if err := tx.CreateTicketResponse(ctx, resp); err != nil {
			return fmt.Errorf("creating auto response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TicketCreated(string(topic))
	if hasReply {
		s.log.Info("ticket auto-answered",
			zap.String("customer_id", customerID),
			zap.Int64("ticket_id", ticket.ID),
			zap.String("topic", string(topic)))
	} else {
		s.log.Info("ticket escalated",
			zap.String("customer_id", customerID),
			zap.Int64("ticket_id", ticket.ID))
	}

	return &domain.CreateTicketResponse{
		TicketID:    ticket.ID,
		Status:      ticket.Status,
		AIResponded: ticket.AIResponded,
		Message:     ticketCreatedMessage,
	}, nil
}

// List returns customerID's tickets, newest first.
func (s *TicketService) List(ctx context.Context, customerID string) ([]*domain.Ticket, error) {
	tickets, err := s.store.ListTickets(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	return tickets, nil
}

// Responses returns the thread of a ticket owned by customerID, oldest first.
// Tickets that do not exist or belong to another customer yield domain.ErrNotFound.
func (s *TicketService) Responses(ctx context.Context, customerID string, ticketID int64) ([]*domain.TicketResponse, error) {
	if _, err := s.store.GetTicket(ctx, customerID, ticketID); err != nil {
		return nil, err
	}
	responses, err := s.store.ListTicketResponses(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("listing ticket responses: %w", err)
	}
	return responses, nil
}
