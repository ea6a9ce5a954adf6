package eventstream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/sprintguild/internal/eventbus"
)

// readFrame returns the next non-empty SSE frame as its lines.
func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) > 0 {
				return lines
			}
			continue
		}
		lines = append(lines, line)
	}
}

func open(t *testing.T, srv *httptest.Server, query string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events"+query, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.Equal(t, []string{": connected"}, readFrame(t, r))
	return r
}

func TestServer_StreamsFilteredEvents(t *testing.T) {
	bus := eventbus.New()
	srv := httptest.NewServer(NewServer(bus))
	t.Cleanup(srv.Close)

	r := open(t, srv, "?types=task.moved,board.stale&sprint_id=s1")

	bus.PublishNew(eventbus.TaskCreated, "t0", map[string]string{"sprint_id": "s1"})
	bus.PublishNew(eventbus.TaskMoved, "t1", map[string]string{"sprint_id": "s2"})
	bus.PublishNew(eventbus.TaskMoved, "t2", map[string]string{"sprint_id": "s1"})

	frame := readFrame(t, r)
	require.Len(t, frame, 3)
	assert.True(t, strings.HasPrefix(frame[0], "id: "))
	assert.Equal(t, "event: task.moved", frame[1])

	var ev eventbus.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame[2], "data: ")), &ev))
	assert.Equal(t, "t2", ev.ResourceID)
	assert.Equal(t, eventbus.TaskMoved, ev.Type)
}

func TestServer_RejectsNonGet(t *testing.T) {
	srv := httptest.NewServer(NewServer(eventbus.New()))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL, "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
