package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/stretchr/testify/require"
)

func TestSystemMetricsSSE(t *testing.T) {
	s := newTestServer(t)
	s.create(t, 4, model.TestNameTechnical)
	_, err := s.mr.Lpush(config.WorkerKey.PersistOutcomesQueue, `{}`)
	require.NoError(t, err)
	for range 3 {
		_, err = s.mr.Lpush(config.WorkerKey.PersistViolationsQueue, `{}`)
		require.NoError(t, err)
	}

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/system/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token(t, 4))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var frame string
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			frame = data
			break
		}
	}
	require.NotEmpty(t, frame, "no data frame received")

	var m systemMetrics
	require.NoError(t, json.Unmarshal([]byte(frame), &m))
	require.Equal(t, 1, m.LiveAttempts)
	require.Equal(t, int64(1), m.QueueOutcomes)
	require.Equal(t, int64(3), m.QueueViolations)
	require.Positive(t, m.Goroutines)
	require.NotEmpty(t, m.GoVersion)
}
