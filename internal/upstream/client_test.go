package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop())
}

func TestGetTestByName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/test/getTestByName/General Aptitude Test", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"questions":[{"question":"2+2","options":["3","4"],"answer":"4"}],"duration":45,"numberOfQuestions":1,"topicsCovered":["Math"]}`)
	})

	def, err := c.GetTestByName(context.Background(), "tok", model.TestNameGeneralAptitude)
	require.NoError(t, err)
	require.Equal(t, model.TestNameGeneralAptitude, def.TestName)
	require.Len(t, def.Questions, 1)
	require.Equal(t, "4", def.Questions[0].Answer)
	require.Equal(t, 45, def.Duration)
	require.Equal(t, []string{"Math"}, def.TopicsCovered)
}

func TestSaveTestResultBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/applicant1/saveTest/42", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Technical Test", body["testName"])
		assert.EqualValues(t, 80, body["testScore"])
		assert.Equal(t, "P", body["testStatus"])
		assert.EqualValues(t, 42, body["applicant"].(map[string]any)["id"])
		w.WriteHeader(http.StatusCreated)
	})

	err := c.SaveTestResult(context.Background(), "tok", 42, model.TestResultRecord{
		TestName:   model.TestNameTechnical,
		TestScore:  80,
		TestStatus: model.TestStatusPass,
		Applicant:  model.ApplicantRef{ID: 42},
	})
	require.NoError(t, err)
}

func TestSaveSkillBadgeBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/skill-badges/save", r.URL.Path)
		var body model.SkillBadgeRecord
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, model.SkillBadgeRecord{ApplicantID: 9, SkillBadgeName: "Java", Status: model.BadgeStatusFailed}, body)
	})

	err := c.SaveSkillBadge(context.Background(), "tok", model.SkillBadgeRecord{ApplicantID: 9, SkillBadgeName: "Java", Status: model.BadgeStatusFailed})
	require.NoError(t, err)
}

func TestStatusErrorCarriesCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/zoho/update/zoho-1", r.URL.Path)
		http.Error(w, "nope", http.StatusForbidden)
	})

	err := c.UpdateCRM(context.Background(), "tok", "zoho-1", map[string]any{"TT": "P"})
	require.Error(t, err)
	code, ok := StatusCode(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, code)

	_, ok = StatusCode(context.Canceled)
	require.False(t, ok)
}
