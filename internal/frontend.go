package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/client"
)

// frontend implements the concurrent client connection logic for TCP.
//
// Frames are read from any connected clients and passed to a backend instance,
// abstracting the lower level connection details away from the Backend.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger
}

// Run opens a TCP socket for the frontend and accepts clients until ctx is
// cancelled. It returns once every client goroutine has exited.
func (f *frontend) Run(ctx context.Context) error {
	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	go func() {
		<-ctx.Done()
		_ = socket.Close()
	}()

	f.Logger.Infof("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	clientWg := &sync.WaitGroup{}
	for {
		connection, err := socket.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			f.Logger.Warnf("failed to accept connection: %s", err.Error())
			continue
		}

		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			_ = connection.SetNoDelay(true)
			c := client.NewClient(client.NewStreamTransport(connection), f.Config.Transport.SendQueueSize)
			serveClient(ctx, c, f.Backend, f.Config, f.Logger)
		}()
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
	return nil
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// serveClient runs the read loop of one connection until it closes. It is
// shared by every transport.
func serveClient(ctx context.Context, c *client.Client, backend Backend, cfg *core.Config, logger *logrus.Logger) {
	go c.Run()
	defer closeConnectionAndRecover(backend, logger, c)

	logger.Infof("[%s] accepted connection from %s", backend.Identifier(), c.Addr())

	// Unblock the read below when the server shuts down.
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.Done():
		}
	}()

	request, err := c.ReadFrame()
	if err != nil {
		return
	}
	if request.Kind != client.FrameRequest {
		logger.Warnf("[%s] %s sent %d before a connection request", backend.Identifier(), c.Addr(), request.Kind)
		return
	}
	backend.ConnectionRequested(c, request.Body)

	go pingClient(c, cfg.Transport.PingInterval)

	for {
		f, err := c.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && c.Connected() {
				logger.Debugf("[%s] error reading from %s: %v", backend.Identifier(), c.Addr(), err)
			}
			return
		}

		switch f.Kind {
		case client.FrameMessage:
			if c.Accepted() {
				backend.Received(c, f.Body)
			}
		case client.FramePong:
			if latency, ok := c.Latency(f.Body, time.Now()); ok && c.Accepted() {
				backend.LatencyUpdated(c, int32(latency.Milliseconds()))
			}
		default:
			logger.Debugf("[%s] ignoring frame kind %d from %s", backend.Identifier(), f.Kind, c.Addr())
		}
	}
}

func pingClient(c *client.Client, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case now := <-ticker.C:
			if c.Accepted() {
				_ = c.Ping(now)
			}
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and tells the backend regardless of the state of the connection.
func closeConnectionAndRecover(backend Backend, logger *logrus.Logger, c *client.Client) {
	if err := recover(); err != nil {
		logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.Addr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil {
		logger.Debugf("failed to close client connection: %s", err)
	}

	backend.Disconnected(c)
	logger.Infof("[%s] disconnected client %s", backend.Identifier(), c.Addr())
}
