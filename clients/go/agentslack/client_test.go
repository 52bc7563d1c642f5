package agentslack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallToolAddsAgentName(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tools/send_dm", r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get("X-Agent-Name"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tool":"send_dm","result":{"status":"sent","channel_id":"D1","timestamp":"1.000001"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Agent = "alice"
	res, err := c.SendDM(context.Background(), "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, "sent", res.Status)
	assert.Equal(t, "D1", res.ChannelID)
	assert.Equal(t, map[string]any{"your_name": "alice", "recipient_name": "bob", "message": "hi"}, got)
}

func TestAPIErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"kind":"DmNotFound","message":"no direct conversation"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Agent = "alice"
	_, err := c.ReadDM(context.Background(), "bob")
	require.Error(t, err)
	assert.True(t, IsKind(err, "DmNotFound"))
	assert.False(t, IsKind(err, "NotFound"))
	assert.Contains(t, err.Error(), "404")
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListTools(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestRegisterAgentSendsAdminKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register_agent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Admin-Key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Agent{Name: body["agent_name"], World: body["world_name"], UserID: "UA1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.AdminKey = "k"
	agent, err := c.RegisterAgent(context.Background(), "alice", "office")
	require.NoError(t, err)
	assert.Equal(t, "office", agent.World)
	assert.Equal(t, "UA1", agent.UserID)
}

func TestCheckNewMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tool":"check_new_messages","result":{"batches":[{"channel_id":"C1","channel_name":"general","messages":[{"author":"bob","message":"hey"}]}],"failures":[{"channel_id":"C2","error":"boom"}]}}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).CheckNewMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, "hey", res.Batches[0].Messages[0].Message)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "C2", res.Failures[0].ChannelID)
}
