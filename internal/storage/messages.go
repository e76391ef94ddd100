package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"management/backend/internal/metrics"
	"management/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	// deleteBatchSize bounds the IN list of a single statement.
	deleteBatchSize = 500
)

// GetOrCreateRoom returns the room with the given name, creating it on first use.
func (s *Service) GetOrCreateRoom(ctx context.Context, name string) (*models.ChatRoom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is empty", ErrInvalid)
	}
	if utf8.RuneCountInString(name) > models.MaxRoomNameLength {
		return nil, fmt.Errorf("%w: room name is longer than %d characters", ErrInvalid, models.MaxRoomNameLength)
	}

	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where(models.ChatRoom{Name: name}).FirstOrCreate(&room).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a create race with another connection
		err = s.DB.WithContext(ctx).Where("name = ?", name).First(&room).Error
	}
	if err != nil {
		log.Printf("ERROR: Failed to get or create room %s: %v", name, err)
		return nil, err
	}
	return &room, nil
}

// GetRoomByName returns the room with the given name.
func (s *Service) GetRoomByName(ctx context.Context, name string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where("name = ?", name).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chat room %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateMessage inserts a message into the room. When parentID is set the parent
// must exist at write time, otherwise ErrIntegrity is returned and nothing is
// written. The parent row is share-locked until commit so a concurrent cascade
// delete cannot remove it between the check and the insert.
func (s *Service) CreateMessage(ctx context.Context, roomID uint, authorID, body string, parentID *uint) (*models.GroupMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: message body is empty", ErrInvalid)
	}
	if strings.TrimSpace(authorID) == "" {
		return nil, fmt.Errorf("%w: author is empty", ErrInvalid)
	}

	msg := models.GroupMessage{
		ChatRoomID: roomID,
		AuthorID:   authorID,
		Body:       body,
		ParentID:   parentID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.ChatRoom
		if err := tx.Select("id").First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("chat room %d: %w", roomID, ErrNotFound)
			}
			return err
		}

		if parentID != nil {
			var parent models.GroupMessage
			err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
				Select("id").
				First(&parent, *parentID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: parent message %d does not exist", ErrIntegrity, *parentID)
			}
			if err != nil {
				return err
			}
		}

		return tx.Omit(clause.Associations).Create(&msg).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		err = fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrIntegrity):
			metrics.IntegrityErrors.Inc()
		case errors.Is(err, ErrNotFound):
		default:
			log.Printf("ERROR: Failed to save message for room %d: %v", roomID, err)
		}
		return nil, err
	}

	metrics.MessagesCreated.Inc()
	return &msg, nil
}

// GetMessage returns the message with the given id.
func (s *Service) GetMessage(ctx context.Context, id uint) (*models.GroupMessage, error) {
	var msg models.GroupMessage
	err := s.DB.WithContext(ctx).First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListReplies returns the direct replies of a message in insertion order.
func (s *Service) ListReplies(ctx context.Context, id uint) ([]models.GroupMessage, error) {
	if _, err := s.GetMessage(ctx, id); err != nil {
		return nil, err
	}

	replies := []models.GroupMessage{}
	if err := s.DB.WithContext(ctx).Where("parent_id = ?", id).Order("id asc").Find(&replies).Error; err != nil {
		log.Printf("ERROR: Failed to list replies of message %d: %v", id, err)
		return nil, err
	}
	return replies, nil
}

// ListThread returns the message and all of its descendants, breadth first.
func (s *Service) ListThread(ctx context.Context, id uint) ([]models.GroupMessage, error) {
	var thread []models.GroupMessage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.GroupMessage
		if err := tx.First(&root, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("message %d: %w", id, ErrNotFound)
			}
			return err
		}

		thread = append(thread, root)
		seen := map[uint]struct{}{root.ID: {}}
		frontier := []uint{root.ID}
		for len(frontier) > 0 {
			var level []models.GroupMessage
			for _, batch := range chunk(frontier, deleteBatchSize) {
				var part []models.GroupMessage
				if err := tx.Where("parent_id IN ?", batch).Order("id asc").Find(&part).Error; err != nil {
					return err
				}
				level = append(level, part...)
			}
			next := make([]uint, 0, len(level))
			for _, m := range level {
				if _, ok := seen[m.ID]; ok {
					continue
				}
				seen[m.ID] = struct{}{}
				thread = append(thread, m)
				next = append(next, m.ID)
			}
			frontier = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// ListRoomMessages returns the latest messages of a room in chronological order.
func (s *Service) ListRoomMessages(ctx context.Context, roomID uint, limit int) ([]models.GroupMessage, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	msgs := []models.GroupMessage{}
	err := s.DB.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("id desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to get chat history for room %d: %v", roomID, err)
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteMessage removes the message and its whole reply subtree in one
// transaction and returns the number of rows removed. Readers never observe a
// reply whose parent is already gone.
func (s *Service) DeleteMessage(ctx context.Context, id uint) (int64, error) {
	var removed int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.GroupMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&root, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("message %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		ids, err := collectSubtree(tx, root.ID)
		if err != nil {
			return err
		}

		// ids is breadth first, so walking it backwards removes children before parents.
		for end := len(ids); end > 0; end -= deleteBatchSize {
			start := end - deleteBatchSize
			if start < 0 {
				start = 0
			}
			if err := tx.Where("id IN ?", ids[start:end]).Delete(&models.GroupMessage{}).Error; err != nil {
				return err
			}
		}
		// rows removed by the FK cascade are not counted in RowsAffected on every driver
		removed = int64(len(ids))
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("ERROR: Failed to delete message %d: %v", id, err)
		}
		return 0, err
	}

	metrics.MessagesDeleted.Add(float64(removed))
	metrics.CascadeSize.Observe(float64(removed))
	return removed, nil
}

// collectSubtree returns rootID followed by all of its descendants, level by level.
// A visited set guards against parent cycles in rows written outside this package.
func collectSubtree(tx *gorm.DB, rootID uint) ([]uint, error) {
	ids := []uint{rootID}
	seen := map[uint]struct{}{rootID: {}}
	frontier := []uint{rootID}

	for len(frontier) > 0 {
		var children []uint
		for _, batch := range chunk(frontier, deleteBatchSize) {
			var part []uint
			if err := tx.Model(&models.GroupMessage{}).Where("parent_id IN ?", batch).Order("id asc").Pluck("id", &part).Error; err != nil {
				return nil, err
			}
			children = append(children, part...)
		}
		next := make([]uint, 0, len(children))
		for _, c := range children {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			ids = append(ids, c)
			next = append(next, c)
		}
		frontier = next
	}
	return ids, nil
}

func chunk(ids []uint, size int) [][]uint {
	var out [][]uint
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
