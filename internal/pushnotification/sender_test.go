package pushnotification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/sprintguild/internal/config"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/pushsubscription"
	"github.com/kazz187/sprintguild/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/sprintguild/pkg/storage"
)

func newSender(t *testing.T, env *config.VAPIDEnv, status map[string]int) (*Sender, pushsubscription.Repository, *[]string) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repositoryimpl.NewYAMLRepository(store)
	var sent []string
	s := NewSender(env, repo)
	s.send = func(_ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		sent = append(sent, sub.Endpoint)
		code := http.StatusCreated
		if c, ok := status[sub.Endpoint]; ok {
			code = c
		}
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return s, repo, &sent
}

func addSub(t *testing.T, repo pushsubscription.Repository, id, endpoint string, sprintIDs ...string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &pushsubscription.Subscription{
		ID: id, Endpoint: endpoint, P256dhKey: "p", AuthKey: "a", SprintIDs: sprintIDs, CreatedAt: time.Now(),
	}))
}

func TestSender_Send(t *testing.T) {
	env := &config.VAPIDEnv{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", VAPIDContact: "mailto:x@example.com"}
	s, repo, sent := newSender(t, env, map[string]int{"https://push/gone": http.StatusGone})
	addSub(t, repo, "1", "https://push/ok")
	addSub(t, repo, "2", "https://push/gone")
	ctx := context.Background()

	delivered := s.Send(ctx, &NotificationPayload{Title: "t", Body: "b"})
	assert.Equal(t, 1, delivered)
	assert.ElementsMatch(t, []string{"https://push/ok", "https://push/gone"}, *sent)

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "1", subs[0].ID)
}

func TestSender_SkipsWithoutVAPID(t *testing.T) {
	s, repo, sent := newSender(t, &config.VAPIDEnv{}, nil)
	addSub(t, repo, "1", "https://push/ok")
	assert.Zero(t, s.Send(context.Background(), &NotificationPayload{Title: "t"}))
	assert.Empty(t, *sent)
}

func TestSender_SendFiltersBySprint(t *testing.T) {
	env := &config.VAPIDEnv{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}
	s, repo, sent := newSender(t, env, nil)
	addSub(t, repo, "1", "https://push/all")
	addSub(t, repo, "2", "https://push/s1", "s1")
	addSub(t, repo, "3", "https://push/s2", "s2")
	ctx := context.Background()

	assert.Equal(t, 2, s.Send(ctx, &NotificationPayload{Title: "t", SprintID: "s1"}))
	assert.ElementsMatch(t, []string{"https://push/all", "https://push/s1"}, *sent)

	*sent = nil
	assert.Equal(t, 3, s.Send(ctx, &NotificationPayload{Title: "board"}))
}

func TestPayloadFor(t *testing.T) {
	archived := &eventbus.Event{ID: "e1", Type: eventbus.TaskArchived, ResourceID: "t1",
		Metadata: map[string]string{"actor": "alice", "title": "Fix login bug", "sprint_id": "s1"}}
	p := payloadFor(archived)
	require.NotNil(t, p)
	assert.Equal(t, `alice archived "Fix login bug"`, p.Body)
	assert.Equal(t, "s1", p.SprintID)

	reconciled := &eventbus.Event{ID: "e2", Type: eventbus.ExecutionReconciled, ResourceID: "log1",
		Metadata: map[string]string{"sprint_id": "s1", "completed": "2"}}
	p = payloadFor(reconciled)
	require.NotNil(t, p)
	assert.Equal(t, "/sprints/s1", p.URL)

	reconciled.Metadata["completed"] = "0"
	assert.Nil(t, payloadFor(reconciled))
	assert.Nil(t, payloadFor(&eventbus.Event{Type: eventbus.TaskMoved}))
}

func TestDispatcher_Start(t *testing.T) {
	env := &config.VAPIDEnv{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}
	s, repo, _ := newSender(t, env, nil)
	addSub(t, repo, "1", "https://push/ok")

	delivered := make(chan NotificationPayload, 64)
	s.send = func(msg []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		var p NotificationPayload
		assert.NoError(t, json.Unmarshal(msg, &p))
		delivered <- p
		return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(strings.NewReader(""))}, nil
	}

	bus := eventbus.New()
	d := NewDispatcher(bus, s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	// Wait for the dispatcher to subscribe before publishing.
	require.Eventually(t, func() bool {
		bus.PublishNew(eventbus.BoardStale, "s1", nil)
		select {
		case p := <-delivered:
			return p.Title == "Board out of sync"
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	bus.PublishNew(eventbus.TaskMoved, "t1", nil)
	bus.PublishNew(eventbus.TaskArchived, "t1", map[string]string{"actor": "bob", "title": "Docs"})
	select {
	case p := <-delivered:
		for p.Title == "Board out of sync" {
			p = <-delivered
		}
		assert.Equal(t, "Task archived", p.Title)
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}

	cancel()
	<-done
}
