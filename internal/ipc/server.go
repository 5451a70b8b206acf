package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"murmur/internal/daemon"
	"murmur/internal/logging"
	"murmur/internal/logs"
	"murmur/internal/recordings"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.WithComponent(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Murmur", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun murmur stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func convertRecording(rec *recordings.Recording) Recording {
	if rec == nil {
		return Recording{}
	}
	return Recording{
		ID:              rec.ID,
		Title:           rec.Title,
		AudioPath:       rec.AudioPath,
		TranscriptPath:  rec.TranscriptPath,
		TextPath:        rec.TextPath,
		DurationSeconds: rec.DurationSeconds,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.DatabasePath = status.DatabasePath
	resp.LogPath = status.LogPath
	resp.MonitorRunning = status.MonitorRunning
	resp.LastAudioDeviceEvent = status.LastAudioDeviceEvent
	resp.Recording = status.Workflow.Recording
	resp.RecorderState = status.Workflow.RecorderState
	resp.RecorderFailed = status.Workflow.RecorderFailed
	resp.ActiveJobs = status.Workflow.ActiveJobs
	resp.JobsSucceeded = status.Workflow.JobsSucceeded
	resp.JobsFailed = status.Workflow.JobsFailed
	resp.LastError = status.Workflow.LastError
	resp.TotalRecordings = status.Library.Total
	resp.TotalDurationSeconds = status.Library.TotalDurationSeconds
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) RecordStart(_ RecordStartRequest, resp *RecordStartResponse) error {
	if err := s.daemon.StartRecording(); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "recording started"
	return nil
}

func (s *service) RecordStop(_ RecordStopRequest, resp *RecordStopResponse) error {
	if err := s.daemon.StopRecording(); err != nil {
		resp.Stopped = false
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	resp.Message = "recording stopped, transcription will follow"
	return nil
}

func (s *service) Transcribe(req TranscribeRequest, resp *TranscribeResponse) error {
	if req.AudioPath == "" {
		return errors.New("transcribe requires an audio path")
	}
	rec, err := s.daemon.TranscribeFile(s.ctx, req.AudioPath)
	if err != nil {
		return err
	}
	resp.Recording = convertRecording(rec)
	return nil
}

func (s *service) RecordingsList(_ RecordingsListRequest, resp *RecordingsListResponse) error {
	list, err := s.daemon.ListRecordings(s.ctx)
	if err != nil {
		return err
	}
	resp.Recordings = make([]Recording, 0, len(list))
	for _, rec := range list {
		resp.Recordings = append(resp.Recordings, convertRecording(rec))
	}
	return nil
}

func (s *service) RecordingsDescribe(req RecordingsDescribeRequest, resp *RecordingsDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid recording id %d", req.ID)
	}
	rec, err := s.daemon.GetRecording(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Recording = convertRecording(rec)
	return nil
}

func (s *service) RecordingsRemove(req RecordingsRemoveRequest, resp *RecordingsRemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid recording id %d", req.ID)
	}
	rec, err := s.daemon.RemoveRecording(s.ctx, req.ID, req.DeleteFiles)
	if err != nil {
		return err
	}
	resp.Removed = true
	resp.Recording = convertRecording(rec)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
