// Package tcp_server runs the robot control-plane listener: one goroutine
// per accepted TCP connection registers the peer, streams its PID config,
// and loops reading NDJSON telemetry until it disconnects or idles out.
package tcp_server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"robobridge/audit"
	"robobridge/eventbus"
	"robobridge/logsink"
	"robobridge/normalize"
	"robobridge/pidconfig"
	"robobridge/pose"
	"robobridge/registry"
	"robobridge/shared"
	"robobridge/subscription"
)

// Server is the robot-facing TCP control plane.
type Server struct {
	Registry *registry.Registry
	Poses    *pose.Estimator
	Logs     *logsink.Sink
	Router   *subscription.Router
	Updates  *eventbus.Bus
	PID      *pidconfig.Holder
	Audit    *audit.Log

	// IdleTimeout bounds how long a connection may go without a line before
	// it is dropped. Defaults to shared.RobotIdleTimeout; overridable so
	// tests need not wait out the production value.
	IdleTimeout time.Duration

	listener net.Listener
}

// New builds a Server wired to the shared bridge components.
func New(reg *registry.Registry, poses *pose.Estimator, logs *logsink.Sink, router *subscription.Router, updates *eventbus.Bus, pid *pidconfig.Holder, auditLog *audit.Log) *Server {
	return &Server{
		Registry:    reg,
		Poses:       poses,
		Logs:        logs,
		Router:      router,
		Updates:     updates,
		PID:         pid,
		Audit:       auditLog,
		IdleTimeout: shared.RobotIdleTimeout,
	}
}

// Run listens on addr until ctx is cancelled, accepting robot connections
// and handling each on its own goroutine.
func (s *Server) Run(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp_server: listen %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		shared.SafeClose(ln)
	}()

	shared.DebugPrint("tcp control server listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				shared.DebugError(err)
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer shared.SafeClose(conn)

	host, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		shared.DebugError(err)
		return
	}

	alias, err := s.Registry.Register(host, port, conn)
	if err != nil {
		shared.DebugPrint("robot %s:%s lost registration race, closing", host, port)
		return
	}
	key := registry.Session{IP: host, Port: port}.UniqueKey()

	shared.DebugPrint("robot connected: %s (%s)", alias, key)

	if err := writeLine(conn, `{"status":"success"}`); err != nil {
		shared.DebugError(err)
		s.teardown(host, port, alias)
		return
	}
	ackPayload, err := json.Marshal(map[string]string{
		"type":        "connection_ack",
		"robot_alias": alias,
		"status":      "success",
	})
	if err != nil {
		shared.DebugErrorf("failed to marshal connection_ack for %s: %v", alias, err)
		s.teardown(host, port, alias)
		return
	}
	if err := writeLine(conn, string(ackPayload)); err != nil {
		shared.DebugError(err)
		s.teardown(host, port, alias)
		return
	}

	s.Updates.Publish(eventbus.RobotUpdate{Action: "add", Alias: alias, IP: host})
	s.Audit.RecordConnect(audit.EventRobotConnect, key, alias, conn.RemoteAddr().String())

	s.pushPID(conn)

	s.readLoop(conn, host, alias, key)

	s.teardown(host, port, alias)
	s.Audit.RecordDisconnect(audit.EventRobotDisconnect, key, alias, conn.RemoteAddr().String())
}

func (s *Server) pushPID(conn net.Conn) {
	cache := s.PID.Get()
	for _, id := range cache.SortedMotorIDs() {
		entry := cache.Motors[id]
		if _, err := conn.Write([]byte(pidconfig.Line(id, entry))); err != nil {
			shared.DebugError(err)
			return
		}
		time.Sleep(shared.PIDMotorWriteSpacing)
	}
}

func (s *Server) readLoop(conn net.Conn, ip, alias, key string) {
	conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal(line, &raw); err != nil {
			shared.DebugPrint("parse error from %s: %v", key, err)
			conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
			continue
		}

		s.handleFrame(raw, ip, alias, key)
		conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
	}

	if err := scanner.Err(); err != nil {
		shared.DebugPrint("robot session %s ended: %v", key, err)
	}
}

func (s *Server) handleFrame(raw map[string]interface{}, ip, alias, key string) {
	now := time.Now()
	env := normalize.Normalize(raw)
	env.RobotIP = ip
	env.RobotAlias = alias
	env.Timestamp = float64(now.UnixMilli()) / 1000.0

	switch env.Type {
	case "log":
		s.Logs.LogMessage(key, now, env.Message)
	case "imu_data":
		s.handleIMU(raw, env, key, alias, now)
	case "encoder_data":
		s.handleEncoder(raw, env, key, alias, now)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		shared.DebugError(err)
		return
	}
	s.Router.Broadcast(alias, env.Type, payload)
}

func (s *Server) handleIMU(raw map[string]interface{}, env normalize.Envelope, key, alias string, now time.Time) {
	yaw, ok := normalize.IMUYaw(env)
	if !ok {
		return
	}
	s.Poses.UpdateIMU(key, yaw, now)
	data, _ := env.Data.(map[string]interface{})
	s.Logs.LogIMU(key, now,
		numField(data, "heading"), numField(data, "pitch"), numField(data, "roll"),
		numField(data, "quat_w"), numField(data, "quat_x"), numField(data, "quat_y"), numField(data, "quat_z"),
		numField(data, "lin_accel_x"), numField(data, "lin_accel_y"), numField(data, "lin_accel_z"),
		numField(data, "gravity_x"), numField(data, "gravity_y"), numField(data, "gravity_z"))
}

func (s *Server) handleEncoder(raw map[string]interface{}, env normalize.Envelope, key, alias string, now time.Time) {
	rpm, ok := normalize.EncoderRPMs(env)
	if !ok {
		return
	}
	s.Logs.LogEncoder(key, now, rpm)

	ts, hasTS := normalize.FrameTimestamp(raw)
	if !hasTS {
		ts = float64(now.UnixMilli()) / 1000.0
	}

	result := s.Poses.UpdateEncoder(key, rpm, ts, now)
	if result == nil {
		return
	}
	s.Logs.LogPosition(key, now, result.Position.X, result.Position.Y, result.Position.Theta)

	trajectory := map[string]interface{}{
		"type":        "realtime_trajectory",
		"robot_ip":    env.RobotIP,
		"robot_alias": alias,
		"timestamp":   env.Timestamp,
		"position":    result.Position,
		"path":        result.Path,
	}
	payload, err := json.Marshal(trajectory)
	if err != nil {
		shared.DebugError(err)
		return
	}
	s.Router.Broadcast(alias, "realtime_trajectory", payload)
}

func numField(data map[string]interface{}, key string) float64 {
	if data == nil {
		return 0
	}
	if v, ok := data[key].(float64); ok {
		return v
	}
	return 0
}

func (s *Server) teardown(ip, port, alias string) {
	key := registry.Session{IP: ip, Port: port}.UniqueKey()
	s.Registry.Unregister(ip, port)
	s.Poses.Forget(key)
	s.Logs.Close(key)
	s.Updates.Publish(eventbus.RobotUpdate{Action: "remove", Alias: alias, IP: ip})
	shared.DebugPrint("robot disconnected: %s (%s)", alias, key)
}

func writeLine(conn net.Conn, line string) error {
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

// WriteCommand writes a raw, non-newline-terminated ASCII command to a
// robot's writer.
func WriteCommand(w io.Writer, command string) error {
	_, err := w.Write([]byte(command))
	return err
}

// WriteJSONLine marshals v and writes it to w followed by a newline.
func WriteJSONLine(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(payload, '\n'))
	return err
}
