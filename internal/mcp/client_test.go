package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientStartsEmpty(t *testing.T) {
	c := NewClient()
	assert.Equal(t, 0, c.ServerCount())
	assert.Equal(t, 0, c.ConnectedCount())
	assert.Empty(t, c.Status())
	assert.Empty(t, c.Tools())
}

func TestAddServerDisabledSkipsConnect(t *testing.T) {
	c := NewClient()
	err := c.AddServer(context.Background(), "disabled", &Config{Enabled: false})
	require.NoError(t, err)

	status, err := c.GetServer("disabled")
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, status.Status)
	assert.Equal(t, 0, c.ConnectedCount())
}

func TestAddServerDuplicateNameErrors(t *testing.T) {
	c := NewClient()
	require.NoError(t, c.AddServer(context.Background(), "dup", &Config{Enabled: false}))
	err := c.AddServer(context.Background(), "dup", &Config{Enabled: false})
	assert.Error(t, err)
}

func TestAddServerUnreachableCommandRecordsFailed(t *testing.T) {
	c := NewClient()
	err := c.AddServer(context.Background(), "broken", &Config{
		Enabled: true,
		Type:    TransportTypeStdio,
		Command: []string{"/nonexistent/binary/that/does/not/exist"},
		Timeout: 200,
	})
	assert.Error(t, err)

	status, getErr := c.GetServer("broken")
	require.NoError(t, getErr)
	assert.Equal(t, StatusFailed, status.Status)
	assert.NotNil(t, status.Error)
}

func TestGetServerNotFound(t *testing.T) {
	c := NewClient()
	_, err := c.GetServer("nope")
	assert.Error(t, err)
}

func TestRemoveServerNotFound(t *testing.T) {
	c := NewClient()
	err := c.RemoveServer("nope")
	assert.Error(t, err)
}

func TestCallToolNoServerExposesIt(t *testing.T) {
	c := NewClient()
	_, err := c.CallTool(context.Background(), "ghost_tool", nil)
	assert.Error(t, err)
}

func TestSanitizeReplacesNonAlphanumeric(t *testing.T) {
	assert.Equal(t, "a_b_c123", sanitize("a-b.c123"))
}

func TestCloseOnEmptyClientIsNoop(t *testing.T) {
	c := NewClient()
	assert.NoError(t, c.Close())
}
