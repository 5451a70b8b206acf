package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Murmur.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to shut down its workflow.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Murmur.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStart begins a capture.
func (c *Client) RecordStart() (*RecordStartResponse, error) {
	var resp RecordStartResponse
	if err := c.client.Call("Murmur.RecordStart", RecordStartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStop ends a capture.
func (c *Client) RecordStop() (*RecordStopResponse, error) {
	var resp RecordStopResponse
	if err := c.client.Call("Murmur.RecordStop", RecordStopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcribe runs the pipeline for an existing audio file.
func (c *Client) Transcribe(audioPath string) (*TranscribeResponse, error) {
	var resp TranscribeResponse
	req := TranscribeRequest{AudioPath: audioPath}
	if err := c.client.Call("Murmur.Transcribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsList returns stored memos, newest first.
func (c *Client) RecordingsList() (*RecordingsListResponse, error) {
	var resp RecordingsListResponse
	if err := c.client.Call("Murmur.RecordingsList", RecordingsListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsDescribe returns details for a single memo.
func (c *Client) RecordingsDescribe(id int64) (*RecordingsDescribeResponse, error) {
	var resp RecordingsDescribeResponse
	req := RecordingsDescribeRequest{ID: id}
	if err := c.client.Call("Murmur.RecordingsDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsRemove deletes a memo, optionally with its artifacts.
func (c *Client) RecordingsRemove(id int64, deleteFiles bool) (*RecordingsRemoveResponse, error) {
	var resp RecordingsRemoveResponse
	req := RecordingsRemoveRequest{ID: id, DeleteFiles: deleteFiles}
	if err := c.client.Call("Murmur.RecordingsRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Murmur.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Murmur.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
