package mongo_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/model"
	"github.com/chirino/taskmate/internal/plugin/store/mongo"
	registrymigrate "github.com/chirino/taskmate/internal/registry/migrate"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/testutil/testmongo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (registrystore.TaskStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	cfg := config.DefaultConfig()
	testmongo.Configure(t, &cfg)
	ctx := config.WithContext(context.Background(), &cfg)

	// Ensure mongo store plugin is registered
	_ = mongo.ForceImport

	err := registrymigrate.RunAll(ctx)
	require.NoError(t, err)

	loader, err := registrystore.Select("mongo")
	require.NoError(t, err)

	store, err := loader(ctx)
	require.NoError(t, err)

	return store, ctx
}

func createUser(t *testing.T, ctx context.Context, store registrystore.TaskStore, name string) *model.User {
	t.Helper()
	u, err := store.CreateUser(ctx, registrystore.CreateUserRequest{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func createTask(t *testing.T, ctx context.Context, store registrystore.TaskStore, creator string, title string, assignees ...string) *model.TaskView {
	t.Helper()
	task, err := store.CreateTask(ctx, creator, registrystore.CreateTaskRequest{
		Title:      title,
		DueDate:    time.Now().Add(48 * time.Hour),
		AssignedTo: assignees,
	})
	require.NoError(t, err)
	return task
}

func TestCreateUserDefaultsAndDuplicateEmail(t *testing.T) {
	store, ctx := setupTestStore(t)

	u := createUser(t, ctx, store, "Alice")
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, model.DefaultJobTitle, u.JobTitle)

	_, err := store.CreateUser(ctx, registrystore.CreateUserRequest{Name: "Other", Email: "ALICE@example.com", PasswordHash: "x"})
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email_exists", conflict.Code)

	got, err := store.GetUserByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUpdateProfileAndDeleteUser(t *testing.T) {
	store, ctx := setupTestStore(t)
	u := createUser(t, ctx, store, "Bob")

	title := "Manager"
	updated, err := store.UpdateUserProfile(ctx, u.ID, registrystore.UserProfileUpdate{JobTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, "Manager", updated.JobTitle)
	assert.Equal(t, "Bob", updated.Name)

	changedAt := time.Now().Truncate(time.Millisecond)
	require.NoError(t, store.ChangePassword(ctx, u.ID, "newhash", changedAt))
	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
	require.NotNil(t, got.PasswordChangedAt)

	_, err = store.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	_, err = store.GetUser(ctx, u.ID)
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestUsersExistReportsMissingUser(t *testing.T) {
	store, ctx := setupTestStore(t)
	u := createUser(t, ctx, store, "Carol")

	require.NoError(t, store.UsersExist(ctx, []string{u.ID}))

	missing := "64b7f0c2a1b2c3d4e5f60718"
	err := store.UsersExist(ctx, []string{u.ID, missing})
	var nf *registrystore.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, missing, nf.ID)

	err = store.UsersExist(ctx, []string{"not-an-id"})
	var ve *registrystore.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestCreateTaskNotifiesEveryAssignee(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	a := createUser(t, ctx, store, "Dan")
	b := createUser(t, ctx, store, "Eve")

	task := createTask(t, ctx, store, admin.ID, "Write report", a.ID, b.ID)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.StatusToDo, task.Status)
	require.Len(t, task.AssignedTo, 2)
	require.NotNil(t, task.CreatedBy)
	assert.Equal(t, admin.ID, task.CreatedBy.ID)

	for _, u := range []*model.User{a, b} {
		notes, err := store.ListUserNotifications(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, model.NotificationTaskCreated, notes[0].Type)
		assert.Equal(t, "New task assigned: Write report", notes[0].Message)
		require.NotNil(t, notes[0].RelatedTask)
		assert.Equal(t, task.ID, notes[0].RelatedTask.ID)
	}
}

func TestTaskFilters(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	a := createUser(t, ctx, store, "Finn")
	b := createUser(t, ctx, store, "Gina")

	createTask(t, ctx, store, admin.ID, "both", a.ID, b.ID)
	createTask(t, ctx, store, admin.ID, "only a", a.ID)

	all, err := store.ListTasks(ctx, registrystore.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	both, err := store.ListTasks(ctx, registrystore.TaskFilter{AssignedTo: []string{a.ID, b.ID}})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "both", both[0].Title)

	mine, err := store.ListUserTasks(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestTrashLifecycle(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	u := createUser(t, ctx, store, "Hank")
	task := createTask(t, ctx, store, admin.ID, "Trash me", u.ID)

	require.NoError(t, store.TrashTask(ctx, admin.ID, task.ID))

	active, err := store.ListTasks(ctx, registrystore.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, active)

	trash, err := store.ListTrash(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.True(t, trash[0].IsDeleted)
	assert.NotNil(t, trash[0].DeletedAt)

	var ve *registrystore.ValidationError
	assert.True(t, errors.As(store.TrashTask(ctx, admin.ID, task.ID), &ve))

	title := "changed"
	_, err = store.UpdateTask(ctx, admin.ID, task.ID, registrystore.TaskUpdate{Title: &title})
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, store.RestoreTask(ctx, admin.ID, task.ID))
	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.Nil(t, got.DeletedAt)
	assert.True(t, errors.As(store.RestoreTask(ctx, admin.ID, task.ID), &ve))

	assert.True(t, errors.As(store.DeleteTaskPermanently(ctx, admin.ID, task.ID), &ve))
	require.NoError(t, store.TrashTask(ctx, admin.ID, task.ID))
	require.NoError(t, store.DeleteTaskPermanently(ctx, admin.ID, task.ID))
	_, err = store.GetTask(ctx, task.ID)
	assert.True(t, errors.As(err, &nf))

	notes, err := store.ListUserNotifications(ctx, u.ID)
	require.NoError(t, err)
	var types []model.NotificationType
	for _, n := range notes {
		types = append(types, n.Type)
	}
	assert.ElementsMatch(t, []model.NotificationType{
		model.NotificationTaskCreated,
		model.NotificationTaskTrashed,
		model.NotificationTaskRestored,
		model.NotificationTaskTrashed,
		model.NotificationTaskDeleted,
	}, types)
}

func TestEmptyTrashAndPurge(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	other := createUser(t, ctx, store, "Ivy")

	t1 := createTask(t, ctx, store, admin.ID, "one")
	t2 := createTask(t, ctx, store, admin.ID, "two")
	t3 := createTask(t, ctx, store, other.ID, "three")
	for _, id := range []string{t1.ID, t2.ID} {
		require.NoError(t, store.TrashTask(ctx, admin.ID, id))
	}
	require.NoError(t, store.TrashTask(ctx, other.ID, t3.ID))

	n, err := store.EmptyTrash(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.PurgeTrash(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.PurgeTrash(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateStatusNotifiesCreator(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	u := createUser(t, ctx, store, "Jack")
	task := createTask(t, ctx, store, admin.ID, "Status", u.ID)

	updated, err := store.UpdateTaskStatus(ctx, u.ID, task.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	notes, err := store.ListUserNotifications(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Task status updated to completed: Status", notes[0].Message)
	require.NotNil(t, notes[0].CreatedBy)
	assert.Equal(t, u.ID, notes[0].CreatedBy.ID)
}

func TestDueTasksAndReminderMarker(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	u := createUser(t, ctx, store, "Kim")

	now := time.Now()
	soon, err := store.CreateTask(ctx, admin.ID, registrystore.CreateTaskRequest{Title: "soon", DueDate: now.Add(2 * time.Hour), AssignedTo: []string{u.ID}})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, admin.ID, registrystore.CreateTaskRequest{Title: "later", DueDate: now.Add(72 * time.Hour), AssignedTo: []string{u.ID}})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, admin.ID, registrystore.CreateTaskRequest{Title: "done", DueDate: now.Add(time.Hour), Status: model.StatusCompleted})
	require.NoError(t, err)

	due, err := store.DueTasks(ctx, now, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	first, err := store.MarkDueReminderSent(ctx, soon.ID, now)
	require.NoError(t, err)
	assert.True(t, first)
	second, err := store.MarkDueReminderSent(ctx, soon.ID, now)
	require.NoError(t, err)
	assert.False(t, second)

	due, err = store.DueTasks(ctx, now, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	open, err := store.OpenTasks(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestUpdateTaskDueDateResetsReminder(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	u := createUser(t, ctx, store, "Quinn")

	now := time.Now()
	task, err := store.CreateTask(ctx, admin.ID, registrystore.CreateTaskRequest{Title: "moving", DueDate: now.Add(2 * time.Hour), AssignedTo: []string{u.ID}})
	require.NoError(t, err)
	sent, err := store.MarkDueReminderSent(ctx, task.ID, now)
	require.NoError(t, err)
	require.True(t, sent)

	title := "moving again"
	_, err = store.UpdateTask(ctx, admin.ID, task.ID, registrystore.TaskUpdate{Title: &title})
	require.NoError(t, err)
	due, err := store.DueTasks(ctx, now, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "title change keeps the reminder marker")

	later := now.Add(5 * time.Hour)
	_, err = store.UpdateTask(ctx, admin.ID, task.ID, registrystore.TaskUpdate{DueDate: &later})
	require.NoError(t, err)
	due, err = store.DueTasks(ctx, now, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, task.ID, due[0].ID)
}

func TestNotificationLifecycle(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	u := createUser(t, ctx, store, "Leo")

	n, err := store.CreateNotification(ctx, registrystore.CreateNotificationRequest{
		AssignedTo: []string{u.ID},
		Message:    strings.Repeat("x", 150),
		CreatedBy:  admin.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationGeneral, n.Type)
	assert.Len(t, []rune(n.Message), model.MaxNotificationMessage)
	assert.True(t, strings.HasSuffix(n.Message, "..."))

	read, err := store.ReadNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	require.NoError(t, store.DeleteNotification(ctx, n.ID))
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(store.DeleteNotification(ctx, n.ID), &nf))
}

func TestUpsertMessageNotificationKeepsOnePerSender(t *testing.T) {
	store, ctx := setupTestStore(t)
	a := createUser(t, ctx, store, "Mia")
	b := createUser(t, ctx, store, "Ned")

	require.NoError(t, store.UpsertMessageNotification(ctx, a.ID, b.ID, "first"))
	require.NoError(t, store.UpsertMessageNotification(ctx, a.ID, b.ID, "second"))

	notes, err := store.ListUserNotifications(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "second", notes[0].Message)
	assert.False(t, notes[0].IsRead)

	count, err := store.DeleteUserNotifications(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertMessageNotificationLeavesBroadcastsAlone(t *testing.T) {
	store, ctx := setupTestStore(t)
	admin := createUser(t, ctx, store, "Admin")
	a := createUser(t, ctx, store, "Olga")
	b := createUser(t, ctx, store, "Pete")

	broadcast, err := store.CreateNotification(ctx, registrystore.CreateNotificationRequest{
		AssignedTo: []string{a.ID, b.ID},
		Message:    "Standup moved to 10am",
		CreatedBy:  admin.ID,
	})
	require.NoError(t, err)
	_, err = store.ReadNotification(ctx, broadcast.ID)
	require.NoError(t, err)

	require.NoError(t, store.UpsertMessageNotification(ctx, admin.ID, a.ID, "Admin sent you a message"))

	forB, err := store.ListUserNotifications(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, broadcast.ID, forB[0].ID)
	assert.Equal(t, "Standup moved to 10am", forB[0].Message)
	assert.True(t, forB[0].IsRead)

	forA, err := store.ListUserNotifications(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, forA, 2)
	var dm *model.NotificationView
	for i := range forA {
		if forA[i].ID != broadcast.ID {
			dm = &forA[i]
		}
	}
	require.NotNil(t, dm)
	assert.Equal(t, "Admin sent you a message", dm.Message)
	assert.Equal(t, model.NotificationGeneral, dm.Type)
	assert.False(t, dm.IsRead)
	assert.Equal(t, []string{a.ID}, dm.AssignedTo)
}

func TestInboxConversation(t *testing.T) {
	store, ctx := setupTestStore(t)
	a := createUser(t, ctx, store, "Olga")
	b := createUser(t, ctx, store, "Paul")

	_, err := store.SendMessage(ctx, a.ID, b.ID, "hi")
	require.NoError(t, err)
	_, err = store.SendMessage(ctx, a.ID, b.ID, "are you there?")
	require.NoError(t, err)
	_, err = store.SendMessage(ctx, b.ID, a.ID, "yes")
	require.NoError(t, err)

	unread, err := store.HasUnread(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, unread)

	senders, err := store.Senders(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, 2, senders[0].MessageCount)
	assert.Equal(t, "are you there?", senders[0].LastMessage.Body)
	assert.Equal(t, a.ID, senders[0].Sender.ID)

	peers, err := store.ChatPeers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, b.ID, peers[0].User.ID)
	assert.Equal(t, "yes", peers[0].LastMessage)

	conv, err := store.Conversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "hi", conv.Messages[0].Body)
	assert.False(t, conv.HasUnread)

	require.NoError(t, store.ClearConversation(ctx, b.ID, a.ID))
	conv, err = store.Conversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)

	conv, err = store.Conversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 3)
}

func TestSendMessageToUnknownUser(t *testing.T) {
	store, ctx := setupTestStore(t)
	a := createUser(t, ctx, store, "Quinn")

	_, err := store.SendMessage(ctx, a.ID, "64b7f0c2a1b2c3d4e5f60718", "hello")
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestDeleteMessages(t *testing.T) {
	store, ctx := setupTestStore(t)
	a := createUser(t, ctx, store, "Rita")
	b := createUser(t, ctx, store, "Sam")

	m, err := store.SendMessage(ctx, a.ID, b.ID, "delete me")
	require.NoError(t, err)

	deleted, err := store.DeleteMessages(ctx, []string{m.ID})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, a.ID, deleted[0].Sender)

	_, err = store.GetMessages(ctx, []string{m.ID})
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestGroupChat(t *testing.T) {
	store, ctx := setupTestStore(t)
	a := createUser(t, ctx, store, "Tina")
	b := createUser(t, ctx, store, "Uma")

	chat, err := store.GetGroupChat(ctx)
	require.NoError(t, err)
	assert.True(t, chat.IsMessageAllowed)
	assert.Empty(t, chat.Messages)

	msg, err := store.AppendGroupMessage(ctx, a.ID, registrystore.GroupMessageRequest{Content: "hello all"})
	require.NoError(t, err)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "Tina", msg.Sender.Name)
	assert.Equal(t, []string{a.ID}, msg.ReadBy)

	pinned, err := store.ToggleGroupMessagePin(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	unpinned, err := store.ToggleGroupMessagePin(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	edited, err := store.UpdateGroupMessage(ctx, msg.ID, "hello everyone")
	require.NoError(t, err)
	assert.Equal(t, "hello everyone", edited.Content)
	assert.NotNil(t, edited.LastEdited)

	marked, err := store.MarkGroupChatRead(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	marked, err = store.MarkGroupChatRead(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, marked)

	allowed, err := store.ToggleGroupMessaging(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = store.ToggleGroupMessaging(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, store.DeleteGroupMessage(ctx, msg.ID))
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(store.DeleteGroupMessage(ctx, msg.ID), &nf))
}

func TestChatbotConversations(t *testing.T) {
	store, ctx := setupTestStore(t)
	u := createUser(t, ctx, store, "Vic")

	chat, err := store.CreateChat(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultChatName, chat.Name)

	_, err = store.CreateChat(ctx, u.ID, model.DefaultChatName)
	var conflict *registrystore.ConflictError
	assert.True(t, errors.As(err, &conflict))

	updated, err := store.AppendChatTurns(ctx, u.ID, chat.ID,
		model.ChatTurn{Role: model.ChatRoleUser, Content: "What is due?"},
		model.ChatTurn{Role: model.ChatRoleAssistant, Content: "Nothing."})
	require.NoError(t, err)
	require.Len(t, updated.ChatHistory, 2)
	assert.Equal(t, model.ChatRoleAssistant, updated.ChatHistory[1].Role)

	renamed, err := store.RenameChat(ctx, u.ID, chat.ID, "Planning")
	require.NoError(t, err)
	assert.Equal(t, "Planning", renamed.Name)

	other := createUser(t, ctx, store, "Wes")
	_, err = store.GetChat(ctx, other.ID, chat.ID)
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, store.ClearChatHistory(ctx, u.ID, chat.ID))
	got, err := store.GetChat(ctx, u.ID, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ChatHistory)

	chats, err := store.ListChats(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	require.NoError(t, store.DeleteChat(ctx, u.ID, chat.ID))
	_, err = store.GetChat(ctx, u.ID, chat.ID)
	assert.True(t, errors.As(err, &nf))
}
