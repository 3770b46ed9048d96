package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-go/v2"
)

const (
	ServerKey = "defaultkey"
	Host      = "127.0.0.1"
	Port      = 7350
)

type TestClient struct {
	Client  *nakama.Client
	Session *nakama.Session
	UserID  string
}

func NewTestClient(t *testing.T) *TestClient {
	client := nakama.NewClient(ServerKey, Host, Port, false)

	deviceID := fmt.Sprintf("ballotbox_device_%d", time.Now().UnixNano())
	session, err := client.AuthenticateDevice(context.Background(), deviceID, true, "")
	if err != nil {
		t.Fatalf("Failed to authenticate: %v", err)
	}

	return &TestClient{
		Client:  client,
		Session: session,
		UserID:  session.UserId,
	}
}

// Call invokes a ballot box RPC with payload encoded as JSON and decodes the response into out.
func (tc *TestClient) Call(t *testing.T, rpcID string, payload any, out any) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", rpcID, err)
	}
	rpc, err := tc.Client.RpcFunc(context.Background(), tc.Session, rpcID, string(raw))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(rpc.Payload), out); err != nil {
		t.Fatalf("unmarshal %s response: %v", rpcID, err)
	}
	return nil
}

// MustCall is Call that fails the test on an RPC error.
func (tc *TestClient) MustCall(t *testing.T, rpcID string, payload any, out any) {
	t.Helper()
	if err := tc.Call(t, rpcID, payload, out); err != nil {
		t.Fatalf("RPC %s failed: %v", rpcID, err)
	}
}
