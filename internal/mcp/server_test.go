package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/tienda-moves/internal/database"
	"github.com/ksred/tienda-moves/internal/utils"
)

func setupTestServer(t *testing.T) (*Server, *database.Manager) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	manager, err := database.NewManager(context.Background(), db, database.Options{
		Directory: "migrations",
		Fs:        afero.NewMemMapFs(),
	}, utils.NopLogger())
	require.NoError(t, err)

	server, err := NewServer(manager, utils.NopLogger(), "test")
	require.NoError(t, err)
	return server, manager
}

func callTool(t *testing.T, s *Server, fn toolFunc, args map[string]interface{}) (*Response, bool) {
	t.Helper()

	request := mcp.CallToolRequest{}
	request.Params.Arguments = args

	result, err := s.toolHandler(fn)(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var response Response
	require.NoError(t, json.Unmarshal([]byte(text.Text), &response))
	return &response, result.IsError
}

func TestNewServer_RequiresManager(t *testing.T) {
	_, err := NewServer(nil, utils.NopLogger(), "test")
	assert.Error(t, err)
}

func TestResponse_ToJSON(t *testing.T) {
	response := NewSuccessResponse("Revision created", map[string]string{"id": "0001_init"})

	jsonBytes, err := response.ToJSON()
	require.NoError(t, err)

	jsonString := string(jsonBytes)
	assert.Contains(t, jsonString, `"success":true`)
	assert.Contains(t, jsonString, `"message":"Revision created"`)
	assert.Contains(t, jsonString, `"id":"0001_init"`)
	assert.NotContains(t, jsonString, `"error"`)

	failed := NewErrorResponse("boom")
	assert.False(t, failed.Success)
	assert.Nil(t, failed.Data)
}

func TestTools_CreateUpgradeDowngrade(t *testing.T) {
	s, manager := setupTestServer(t)

	resp, isError := callTool(t, s, s.handler.HandleCreateRevision, map[string]interface{}{"name": "init"})
	assert.False(t, isError)
	assert.Equal(t, map[string]interface{}{"id": "0001_init"}, resp.Data)

	_, isError = callTool(t, s, s.handler.HandleCreateRevision, nil)
	assert.False(t, isError)

	resp, isError = callTool(t, s, s.handler.HandleStatus, nil)
	assert.False(t, isError)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Count)
	assert.Equal(t, 2, resp.Meta.Pending)

	resp, isError = callTool(t, s, s.handler.HandleUpgrade, map[string]interface{}{"target": "1"})
	assert.False(t, isError)
	assert.Equal(t, "Upgrade complete", resp.Message)
	assert.Equal(t, 1, resp.Meta.Pending)

	pending, err := manager.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_auto_migration"}, pending)

	resp, isError = callTool(t, s, s.handler.HandleDowngrade, nil)
	assert.False(t, isError)
	assert.Equal(t, 2, resp.Meta.Pending)
}

func TestTools_Errors(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		name string
		fn   toolFunc
		args map[string]interface{}
		want string
	}{
		{
			name: "show without target",
			fn:   s.handler.HandleShowRevision,
			want: "target is required",
		},
		{
			name: "show unknown revision",
			fn:   s.handler.HandleShowRevision,
			args: map[string]interface{}{"target": "7"},
			want: "could not find revision",
		},
		{
			name: "downgrade with nothing applied",
			fn:   s.handler.HandleDowngrade,
			want: "downgrade failed",
		},
		{
			name: "upgrade unknown target",
			fn:   s.handler.HandleUpgrade,
			args: map[string]interface{}{"target": "nope"},
			want: "upgrade failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, isError := callTool(t, s, tt.fn, tt.args)
			assert.True(t, isError)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.want)
		})
	}
}

func TestShowRevision(t *testing.T) {
	s, manager := setupTestServer(t)

	_, err := manager.Revision("init")
	require.NoError(t, err)
	require.NoError(t, manager.Upgrade(context.Background(), "", false))

	resp, isError := callTool(t, s, s.handler.HandleShowRevision, map[string]interface{}{"target": "0001"})
	assert.False(t, isError)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["applied"])
	rev, ok := data["revision"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0001_init", rev["id"])
	assert.Equal(t, "init", rev["name"])
}

func TestStatusResource(t *testing.T) {
	s, manager := setupTestServer(t)

	_, err := manager.Revision("init")
	require.NoError(t, err)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = statusURI

	contents, err := s.statusResourceHandler()(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, statusURI, text.URI)
	assert.Contains(t, text.Text, `"id":"0001_init"`)
	assert.Contains(t, text.Text, `"applied":false`)
}

func TestReviewPendingPrompt(t *testing.T) {
	s, _ := setupTestServer(t)

	request := mcp.GetPromptRequest{}
	request.Params.Arguments = map[string]string{"target": "0003"}

	result, err := s.reviewPendingHandler()(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	text, ok := result.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "up to and including 0003")
}
