// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStopped, "stopped"},
		{StatusStarting, "starting"},
		{StatusRunning, "running"},
		{StatusStopping, "stopping"},
		{StatusError, "error"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestInstance_MarshalJSON(t *testing.T) {
	inst := Instance{
		Record:    Record{ID: "abc", Name: "lobby", Type: TypeGeneric, StopCommand: StopExit},
		Status:    StatusRunning,
		SessionID: "instance-abc",
	}
	data, err := json.Marshal(inst)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "running", out["status"])
	assert.Equal(t, "instance-abc", out["session_id"])
	assert.Equal(t, "exit", out["stop_command"])
	assert.Equal(t, "lobby", out["name"])
}

func TestStatus_UnmarshalJSON(t *testing.T) {
	var inst Instance
	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc","status":"stopping"}`), &inst))
	assert.Equal(t, StatusStopping, inst.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"paused"}`), &inst))
	assert.Error(t, json.Unmarshal([]byte(`{"status":3}`), &inst))
}

func TestStopCommand_Payload(t *testing.T) {
	assert.Equal(t, []byte{0x03}, StopCtrlC.Payload())
	assert.Equal(t, []byte{0x03}, StopCommand("").Payload())
	assert.Equal(t, []byte("stop\r"), StopStop.Payload())
	assert.Equal(t, []byte("exit\r"), StopExit.Payload())
	assert.Equal(t, []byte("quit\r"), StopQuit.Payload())
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, TypeMinecraftBedrock.Valid())
	assert.False(t, Type("terraria").Valid())
	assert.True(t, StopQuit.Valid())
	assert.False(t, StopCommand("kill").Valid())
}

func TestError_Kinds(t *testing.T) {
	base := errors.New("boom")
	err := wrapError(KindResource, "start", "abc", base, "open terminal session")

	assert.Equal(t, "start abc: open terminal session: boom", err.Error())
	assert.True(t, errors.Is(err, base))
	assert.True(t, IsKind(err, KindResource))
	assert.False(t, IsKind(err, KindValidation))

	wrapped := fmt.Errorf("api: %w", err)
	assert.Equal(t, KindResource, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(base))
	assert.False(t, IsKind(nil, KindUnknown))
	assert.Equal(t, "not_found", KindNotFound.String())
}
