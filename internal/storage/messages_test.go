package storage_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"management/backend/internal/models"
	"management/backend/internal/storage"
	"management/backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) *storage.Service {
	t.Helper()
	return storage.NewStorageService(testutil.NewDB(t), nil)
}

func newRoom(t *testing.T, s *storage.Service, name string) *models.ChatRoom {
	t.Helper()
	room, err := s.GetOrCreateRoom(context.Background(), name)
	require.NoError(t, err)
	return room
}

func post(t *testing.T, s *storage.Service, roomID uint, body string, parent *models.GroupMessage) *models.GroupMessage {
	t.Helper()
	var parentID *uint
	if parent != nil {
		parentID = &parent.ID
	}
	msg, err := s.CreateMessage(context.Background(), roomID, "user-1", body, parentID)
	require.NoError(t, err)
	return msg
}

func countMessages(t *testing.T, s *storage.Service) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB.Model(&models.GroupMessage{}).Count(&n).Error)
	return n
}

func TestGetOrCreateRoom_ReturnsSameRoom(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.GetOrCreateRoom(ctx, "general")
	require.NoError(t, err)
	second, err := s.GetOrCreateRoom(ctx, "general")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	_, err = s.GetOrCreateRoom(ctx, "  ")
	assert.ErrorIs(t, err, storage.ErrInvalid)
}

func TestGetOrCreateRoom_NameLength(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	longest := strings.Repeat("é", models.MaxRoomNameLength)
	room, err := s.GetOrCreateRoom(ctx, longest)
	require.NoError(t, err)
	assert.Equal(t, longest, room.Name)

	_, err = s.GetOrCreateRoom(ctx, longest+"x")
	assert.ErrorIs(t, err, storage.ErrInvalid)

	var n int64
	require.NoError(t, s.DB.Model(&models.ChatRoom{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "a rejected name must not create a room")
}

func TestGetRoomByName_NotFound(t *testing.T) {
	s := newService(t)
	_, err := s.GetRoomByName(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateMessage_TopLevel(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")

	msg, err := s.CreateMessage(ctx, room.ID, "user-1", "hello", nil)
	require.NoError(t, err)

	assert.NotZero(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero(), "store assigns the timestamp")
	assert.Nil(t, msg.ParentID)

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, room.ID, got.ChatRoomID)

	replies, err := s.ListReplies(ctx, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, replies, "a new message has no replies")
}

func TestCreateMessage_ReplyReferencesExistingParent(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	parent := post(t, s, room.ID, "question", nil)

	reply := post(t, s, room.ID, "answer", parent)

	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
	_, err := s.GetMessage(ctx, *reply.ParentID)
	assert.NoError(t, err)
}

func TestCreateMessage_MissingParentFailsWithoutWriting(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	post(t, s, room.ID, "existing", nil)
	before := countMessages(t, s)

	missing := uint(9999)
	msg, err := s.CreateMessage(ctx, room.ID, "user-1", "orphan", &missing)

	assert.Nil(t, msg)
	assert.ErrorIs(t, err, storage.ErrIntegrity)
	assert.Equal(t, before, countMessages(t, s), "store must be unchanged")
}

func TestCreateMessage_RejectsInvalidInput(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")

	tests := []struct {
		name    string
		roomID  uint
		author  string
		body    string
		wantErr error
	}{
		{name: "empty body", roomID: room.ID, author: "u", body: "   ", wantErr: storage.ErrInvalid},
		{name: "empty author", roomID: room.ID, author: "", body: "hi", wantErr: storage.ErrInvalid},
		{name: "unknown room", roomID: room.ID + 100, author: "u", body: "hi", wantErr: storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateMessage(ctx, tt.roomID, tt.author, tt.body, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, countMessages(t, s))
}

func TestListReplies_InsertionOrderAndDirectOnly(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	root := post(t, s, room.ID, "root", nil)
	r1 := post(t, s, room.ID, "r1", root)
	r2 := post(t, s, room.ID, "r2", root)
	post(t, s, room.ID, "nested", r1)

	replies, err := s.ListReplies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, r1.ID, replies[0].ID)
	assert.Equal(t, r2.ID, replies[1].ID)

	_, err = s.ListReplies(ctx, 424242)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteMessage_CascadesThroughChain(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	a := post(t, s, room.ID, "A", nil)
	b := post(t, s, room.ID, "B", a)
	c := post(t, s, room.ID, "C", b)

	removed, err := s.DeleteMessage(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	for _, id := range []uint{a.ID, b.ID, c.ID} {
		_, err := s.GetMessage(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound, "message %d should be gone", id)
	}
}

func TestDeleteMessage_RemovesOnlyTheSubtree(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	root := post(t, s, room.ID, "root", nil)
	left := post(t, s, room.ID, "left", root)
	right := post(t, s, room.ID, "right", root)
	leftChild := post(t, s, room.ID, "left child", left)
	other := post(t, s, room.ID, "unrelated", nil)

	removed, err := s.DeleteMessage(ctx, left.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = s.GetMessage(ctx, leftChild.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, id := range []uint{root.ID, right.ID, other.ID} {
		_, err := s.GetMessage(ctx, id)
		assert.NoError(t, err, "message %d outside the subtree must survive", id)
	}

	replies, err := s.ListReplies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, right.ID, replies[0].ID)
}

func TestDeleteMessage_WideAndDeepTree(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	root := post(t, s, room.ID, "root", nil)

	// 1+3+9+540 rows, more than one delete batch
	level := []*models.GroupMessage{root}
	total := 1
	for depth := 0; depth < 3; depth++ {
		var next []*models.GroupMessage
		for _, p := range level {
			fanout := 3
			if depth == 2 {
				fanout = 60
			}
			for i := 0; i < fanout; i++ {
				next = append(next, post(t, s, room.ID, fmt.Sprintf("d%d-%d", depth, i), p))
				total++
			}
		}
		level = next
	}
	survivor := post(t, s, room.ID, "survivor", nil)

	removed, err := s.DeleteMessage(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(total), removed)
	assert.Equal(t, int64(1), countMessages(t, s))

	_, err = s.GetMessage(ctx, survivor.ID)
	assert.NoError(t, err)
}

func TestDeleteMessage_FailedBatchRollsBackEverything(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	root := post(t, s, room.ID, "root", nil)
	for i := 0; i < 700; i++ {
		post(t, s, room.ID, fmt.Sprintf("reply-%d", i), root)
	}
	require.Equal(t, int64(701), countMessages(t, s))

	errBatch := errors.New("batch failed")
	calls := 0
	const hook = "test:fail_second_delete_batch"
	require.NoError(t, s.DB.Callback().Delete().Before("gorm:delete").Register(hook, func(db *gorm.DB) {
		calls++
		if calls == 2 {
			_ = db.AddError(errBatch)
		}
	}))

	removed, err := s.DeleteMessage(ctx, root.ID)
	require.ErrorIs(t, err, errBatch)
	assert.Zero(t, removed)
	assert.Equal(t, 2, calls, "the first batch must have run before the failure")
	assert.Equal(t, int64(701), countMessages(t, s), "a failed batch must not leave a partial delete")
	_, err = s.GetMessage(ctx, root.ID)
	assert.NoError(t, err)

	require.NoError(t, s.DB.Callback().Delete().Remove(hook))
	removed, err = s.DeleteMessage(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(701), removed)
	assert.Zero(t, countMessages(t, s))
}

func TestDeleteMessage_NotFound(t *testing.T) {
	s := newService(t)
	_, err := s.DeleteMessage(context.Background(), 77)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListThread_BreadthFirst(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	room := newRoom(t, s, "general")
	root := post(t, s, room.ID, "root", nil)
	a := post(t, s, room.ID, "a", root)
	a1 := post(t, s, room.ID, "a1", a)
	b := post(t, s, room.ID, "b", root)

	thread, err := s.ListThread(ctx, root.ID)
	require.NoError(t, err)

	ids := make([]uint, 0, len(thread))
	for _, m := range thread {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []uint{root.ID, a.ID, b.ID, a1.ID}, ids)

	_, err = s.ListThread(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRoomMessages_LatestChronological(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	general := newRoom(t, s, "general")
	random := newRoom(t, s, "random")
	for i := 0; i < 5; i++ {
		post(t, s, general.ID, fmt.Sprintf("g%d", i), nil)
	}
	post(t, s, random.ID, "elsewhere", nil)

	msgs, err := s.ListRoomMessages(ctx, general.ID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "g2", msgs[0].Body)
	assert.Equal(t, "g4", msgs[2].Body)

	all, err := s.ListRoomMessages(ctx, general.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDatabaseCascadeOnDirectDelete(t *testing.T) {
	// The schema itself cascades, independent of DeleteMessage.
	s := newService(t)
	room := newRoom(t, s, "general")
	a := post(t, s, room.ID, "A", nil)
	post(t, s, room.ID, "B", a)

	require.NoError(t, s.DB.Exec("DELETE FROM group_messages WHERE id = ?", a.ID).Error)
	assert.Zero(t, countMessages(t, s))
}

func TestForeignKeyRejectsDanglingParent(t *testing.T) {
	s := newService(t)
	room := newRoom(t, s, "general")

	err := s.DB.Exec(
		"INSERT INTO group_messages (chat_room_id, author_id, body, created_at, parent_id) VALUES (?, 'u', 'x', CURRENT_TIMESTAMP, 12345)",
		room.ID,
	).Error
	assert.Error(t, err)
	assert.Zero(t, countMessages(t, s))
}
