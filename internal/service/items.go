package service

import (
	"context"
	"time"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListItem adds an item to the catalogue and runs the best-effort tail:
// listing cache invalidation and an ItemListed event.
func (s *SaleService) ListItem(ctx context.Context, item models.Item) (models.Item, error) {
	created, err := s.catalogue.Create(ctx, item)
	if err != nil {
		return models.Item{}, err
	}

	s.invalidateListing(ctx)

	if s.eventPublisher != nil {
		event := &models.ItemListedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeItemListed,
				Timestamp: time.Now(),
			},
			ItemID:   created.ID,
			Article:  created.Article,
			Depot:    created.Depot,
			Price:    created.Price,
			SellerID: created.SellerID,
		}
		if err := s.eventPublisher.PublishItemListed(ctx, event); err != nil {
			s.logger.Error("Failed to publish ItemListed event", zap.Error(err))
		}
	}

	return created, nil
}

// UpdateItem replaces an item's fields and invalidates the listing cache.
func (s *SaleService) UpdateItem(ctx context.Context, id string, item models.Item) error {
	if err := s.catalogue.Update(ctx, id, item); err != nil {
		return err
	}
	s.invalidateListing(ctx)
	return nil
}

// DeleteItems removes items from the catalogue. Receipts referencing them
// survive untouched.
func (s *SaleService) DeleteItems(ctx context.Context, ids []string) error {
	if err := s.catalogue.Delete(ctx, ids); err != nil {
		return err
	}

	s.invalidateListing(ctx)

	if s.eventPublisher != nil {
		event := &models.ItemDeletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeItemDeleted,
				Timestamp: time.Now(),
			},
			ItemIDs: ids,
		}
		if err := s.eventPublisher.PublishItemDeleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish ItemDeleted event", zap.Error(err))
		}
	}

	return nil
}

// RegisterUser adds a user to the directory and announces it.
func (s *SaleService) RegisterUser(ctx context.Context, name, phone string) (*models.User, error) {
	user, err := s.ledger.CreateUser(ctx, name, phone)
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		event := &models.UserCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeUserCreated,
				Timestamp: time.Now(),
			},
			UserID: user.ID,
			Name:   user.Name,
		}
		if err := s.eventPublisher.PublishUserCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish UserCreated event", zap.Error(err))
		}
	}

	return user, nil
}

func (s *SaleService) invalidateListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateListing(ctx); err != nil {
		s.logger.Warn("Failed to invalidate listing cache", zap.Error(err))
	}
}
