// Package socket serves the controller's operator commands over a Unix socket
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
)

// Server handles Unix socket server operations
type Server struct {
	socketPath string
	listener   net.Listener
	mu         sync.RWMutex
	enabled    bool
	handler    CommandHandler
}

// CommandHandler processes one decoded socket command
type CommandHandler interface {
	HandleCommand(cmd types.Command) types.Response
}

// NewServer creates a new socket server
func NewServer(socketPath string, enabled bool, handler CommandHandler) *Server {
	return &Server{
		socketPath: socketPath,
		enabled:    enabled,
		handler:    handler,
	}
}

// Init creates the socket file and starts listening
func (s *Server) Init() error {
	if !s.enabled {
		log.Info("Socket server disabled")
		return nil
	}

	// A stale socket from a crashed controller blocks Listen
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Error("Failed to remove existing socket file: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0750); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	// Operator tools may run as a different user than the controller
	//nolint:gosec // G302: group and other need write access to connect
	if err := os.Chmod(s.socketPath, 0660); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Info("Socket server initialized: %s", s.socketPath)
	return nil
}

// Close stops listening and removes the socket file
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	log.Info("Closing socket server")
	err := s.listener.Close()
	s.listener = nil

	if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		log.Error("Failed to remove socket file: %v", removeErr)
	}
	return err
}

// Run accepts connections until ctx is done or the server is closed
func (s *Server) Run(ctx context.Context) {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()

	if listener == nil {
		return
	}

	log.Info("Starting socket server loop")
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info("Socket server loop stopped")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error("Failed to accept socket connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd types.Command
	if err := decoder.Decode(&cmd); err != nil {
		_ = encoder.Encode(types.Response{
			Success: false,
			Error:   fmt.Sprintf("Failed to decode command: %v", err),
		})
		return
	}

	log.DebugH2("socket command: %s", cmd.Action)
	response := s.handler.HandleCommand(cmd)

	if err := encoder.Encode(response); err != nil {
		log.Error("Failed to send socket response: %v", err)
	}
}

// IsEnabled returns whether the socket server is enabled
func (s *Server) IsEnabled() bool {
	return s.enabled
}
