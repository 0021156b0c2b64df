// Package ws_server runs the browser-facing WebSocket control plane: one
// handler per connected UI client accepting subscribe/unsubscribe and
// command verbs, forwarding robot-directed commands onto the matching TCP
// writer, and driving firmware staging.
package ws_server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"robobridge/audit"
	"robobridge/eventbus"
	"robobridge/firmware"
	"robobridge/pidconfig"
	"robobridge/pose"
	"robobridge/registry"
	"robobridge/shared"
	"robobridge/stats"
	"robobridge/subscription"
)

// Server is the UI-facing WebSocket control plane.
type Server struct {
	Registry *registry.Registry
	Router   *subscription.Router
	Updates  *eventbus.Bus
	Staging  *firmware.Staging
	OTA      *firmware.OTAServer
	PID      *pidconfig.Holder
	Poses    *pose.Estimator
	Audit    *audit.Log

	upgrader websocket.Upgrader
}

// New builds a Server wired to the shared bridge components. frontendOrigin
// is the only Origin the WebSocket upgrade accepts (an empty frontendOrigin
// accepts any Origin); no Access-Control-Allow-Origin header is set on the
// response.
func New(reg *registry.Registry, router *subscription.Router, updates *eventbus.Bus, staging *firmware.Staging, ota *firmware.OTAServer, pid *pidconfig.Holder, poses *pose.Estimator, auditLog *audit.Log, frontendOrigin string) *Server {
	return &Server{
		Registry: reg,
		Router:   router,
		Updates:  updates,
		Staging:  staging,
		OTA:      ota,
		PID:      pid,
		Poses:    poses,
		Audit:    auditLog,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == frontendOrigin || frontendOrigin == ""
			},
		},
	}
}

// session pairs a router-assigned client id with the outbound sender used to
// reach it. Splitting this out of the concrete websocket client lets the
// command dispatcher be exercised directly in tests against any
// subscription.Client, without a live socket.
type session struct {
	id  string
	out subscription.Client
}

// ServeHTTP upgrades the request to a WebSocket and drives the resulting UI
// session until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		shared.DebugError(err)
		return
	}

	c := newClient(conn)
	c.id = s.Router.Register(c)
	sess := session{id: c.id, out: c}
	s.Audit.RecordConnect(audit.EventUIConnect, sess.id, "", conn.RemoteAddr().String())

	updatesSub := s.Updates.Subscribe(func(u eventbus.RobotUpdate) {
		s.deliver(sess, availableRobotUpdate(u))
	})

	go c.writePump()

	s.sendInitialRobotList(sess)
	s.readLoop(c, sess)

	s.Updates.Unsubscribe(updatesSub)
	s.Router.Remove(sess.id)
	c.close()
	s.Audit.RecordDisconnect(audit.EventUIDisconnect, sess.id, "", conn.RemoteAddr().String())
}

func (s *Server) readLoop(c *client, sess session) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			shared.DebugPrint("ui session %s ended: %v", sess.id, err)
			return
		}

		var req map[string]interface{}
		if err := json.Unmarshal(message, &req); err != nil {
			s.deliver(sess, errorEnvelope("", "malformed request"))
			continue
		}

		s.dispatch(sess, req)
	}
}

func (s *Server) deliver(sess session, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		shared.DebugError(err)
		return
	}
	if err := sess.out.Send(payload); err != nil {
		shared.DebugPrint("dropping slow ui client %s: %v", sess.id, err)
	}
}

func (s *Server) sendInitialRobotList(sess session) {
	s.deliver(sess, map[string]interface{}{
		"type":   "initial_robot_list",
		"robots": s.Registry.Snapshot(),
	})
}

func availableRobotUpdate(u eventbus.RobotUpdate) map[string]interface{} {
	return map[string]interface{}{
		"type":   "available_robot_update",
		"action": u.Action,
		"robot":  map[string]string{"alias": u.Alias, "ip": u.IP},
	}
}

func errorEnvelope(originalCommand, message string) map[string]interface{} {
	return map[string]interface{}{
		"type":             "error",
		"original_command": originalCommand,
		"message":          message,
	}
}

func commandResponse(originalCommand, status, message string) map[string]interface{} {
	resp := map[string]interface{}{
		"type":             "command_response",
		"original_command": originalCommand,
		"status":           status,
	}
	if message != "" {
		resp["message"] = message
	}
	return resp
}

func ack(originalCommand string) map[string]interface{} {
	return map[string]interface{}{
		"type":             "ack",
		"original_command": originalCommand,
		"status":           "success",
	}
}

func stringField(req map[string]interface{}, key string) string {
	v, _ := req[key].(string)
	return v
}

func intField(req map[string]interface{}, key string) (int, bool) {
	v, ok := req[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func floatField(req map[string]interface{}, key string) float64 {
	v, _ := req[key].(float64)
	return v
}

func (s *Server) resolveTarget(req map[string]interface{}) (*registry.Session, bool) {
	alias := stringField(req, "robot_alias")
	ip := stringField(req, "robot_ip")
	return s.Registry.Resolve(alias, ip)
}

func (s *Server) dispatch(sess session, req map[string]interface{}) {
	command := stringField(req, "command")

	switch command {
	case "get_available_robots":
		s.handleGetAvailableRobots(sess, command)
	case "subscribe":
		s.handleSubscribe(sess, command, req, false, true)
	case "unsubscribe":
		s.handleSubscribe(sess, command, req, false, false)
	case "direct_subscribe":
		s.handleSubscribe(sess, command, req, true, true)
	case "direct_unsubscribe":
		s.handleSubscribe(sess, command, req, true, false)
	case "send_to_robot":
		s.handleSendToRobot(sess, command, req)
	case "upgrade_signal":
		s.handleRawCommand(sess, command, req, "Upgrade")
	case "trigger_robot_pid_task":
		s.handleRawCommand(sess, command, req, "Set PID")
	case "load_pid_config":
		s.handleLoadPIDConfig(sess, command, req)
	case "request_trajectory":
		s.handleRequestTrajectory(sess, command, req)
	case "request_statistics":
		s.handleRequestStatistics(sess, command, req)
	case "upload_firmware_start":
		s.handleUploadFirmwareStart(sess, command, req)
	case "firmware_data_chunk":
		s.handleFirmwareDataChunk(sess, command, req)
	case "upload_firmware_end":
		s.handleUploadFirmwareEnd(sess, command, req)
	default:
		s.deliver(sess, errorEnvelope(command, "Unknown command: "+command))
	}
}

func (s *Server) handleGetAvailableRobots(sess session, command string) {
	s.deliver(sess, map[string]interface{}{
		"type":             "connected_robots_list",
		"original_command": command,
		"robots":           s.Registry.Snapshot(),
	})
}

// handleSubscribe implements subscribe, unsubscribe, direct_subscribe, and
// direct_unsubscribe. direct variants fall back to the GLOBAL sentinel when
// neither robot_ip nor robot_alias is present; the non-direct variants
// require a resolvable alias and reject an unknown one.
func (s *Server) handleSubscribe(sess session, command string, req map[string]interface{}, direct, subscribe bool) {
	dataType := stringField(req, "type")
	if dataType == "" {
		s.deliver(sess, commandResponse(command, "error", "missing required field: type"))
		return
	}

	var entityKey string
	if direct {
		if stringField(req, "robot_alias") == "" && stringField(req, "robot_ip") == "" {
			entityKey = subscription.Global
		} else if resolved, ok := s.resolveTarget(req); ok {
			entityKey = resolved.Alias
		} else {
			s.deliver(sess, commandResponse(command, "error", "unknown or disconnected robot"))
			return
		}
	} else {
		alias := stringField(req, "robot_alias")
		if _, ok := s.Registry.LookupByAlias(alias); !ok {
			s.deliver(sess, commandResponse(command, "error", "unknown robot alias: "+alias))
			return
		}
		entityKey = alias
	}

	if subscribe {
		s.Router.Subscribe(sess.id, entityKey, dataType)
	} else {
		s.Router.Unsubscribe(sess.id, entityKey, dataType)
	}
	s.deliver(sess, ack(command))
}

func (s *Server) handleSendToRobot(sess session, command string, req map[string]interface{}) {
	target, ok := s.resolveTarget(req)
	if !ok {
		s.deliver(sess, commandResponse(command, "error", "unknown or disconnected robot"))
		return
	}

	payload, _ := req["payload"].(map[string]interface{})
	if payload == nil {
		s.deliver(sess, commandResponse(command, "error", "missing required field: payload"))
		return
	}

	var err error
	if stringField(payload, "type") == "pid_values" {
		motorID, _ := intField(payload, "motor_id")
		entry := pidconfig.Entry{
			Kp: floatField(payload, "kp"),
			Ki: floatField(payload, "ki"),
			Kd: floatField(payload, "kd"),
		}
		_, err = target.Writer.Write([]byte(pidconfig.Line(motorID, entry)))
	} else {
		var encoded []byte
		encoded, err = json.Marshal(payload)
		if err == nil {
			_, err = target.Writer.Write(append(encoded, '\n'))
		}
	}

	if err != nil {
		shared.DebugError(err)
		s.deliver(sess, commandResponse(command, "error", "failed to relay command to robot"))
		return
	}
	s.deliver(sess, commandResponse(command, "success", ""))
}

func (s *Server) handleRawCommand(sess session, command string, req map[string]interface{}, wire string) {
	target, ok := s.resolveTarget(req)
	if !ok {
		s.deliver(sess, commandResponse(command, "error", "unknown or disconnected robot"))
		return
	}
	if _, err := target.Writer.Write([]byte(wire)); err != nil {
		shared.DebugError(err)
		s.deliver(sess, commandResponse(command, "error", "failed to relay command to robot"))
		return
	}
	s.deliver(sess, commandResponse(command, "success", ""))
}

func (s *Server) handleLoadPIDConfig(sess session, command string, req map[string]interface{}) {
	target, ok := s.resolveTarget(req)
	if !ok {
		s.deliver(sess, commandResponse(command, "error", "unknown or disconnected robot"))
		return
	}

	cache, err := s.PID.Reload()
	if err != nil {
		shared.DebugError(err)
		s.deliver(sess, commandResponse(command, "error", "failed to reload pid configuration"))
		return
	}

	for _, id := range cache.SortedMotorIDs() {
		entry := cache.Motors[id]
		if _, err := target.Writer.Write([]byte(pidconfig.Line(id, entry))); err != nil {
			shared.DebugError(err)
			s.deliver(sess, commandResponse(command, "error", "failed to push pid configuration to robot"))
			return
		}
		time.Sleep(shared.PIDMotorWriteSpacing)
	}

	s.deliver(sess, commandResponse(command, "success", ""))
}

func (s *Server) handleRequestTrajectory(sess session, command string, req map[string]interface{}) {
	target, ok := s.resolveTarget(req)
	if !ok {
		s.deliver(sess, commandResponse(command, "error", "unknown or disconnected robot"))
		return
	}

	result, ok := s.Poses.Snapshot(target.UniqueKey())
	if !ok {
		s.deliver(sess, commandResponse(command, "error", "no pose data for robot"))
		return
	}

	path := result.Path
	if limit, hasLimit := intField(req, "limit"); hasLimit && limit > 0 && limit < len(path) {
		path = path[len(path)-limit:]
	}

	s.deliver(sess, map[string]interface{}{
		"type":             "trajectory_data",
		"original_command": command,
		"position":         result.Position,
		"path":             path,
	})
}

func (s *Server) handleRequestStatistics(sess session, command string, req map[string]interface{}) {
	target, ok := s.resolveTarget(req)
	if !ok {
		s.deliver(sess, commandResponse(command, "error", "unknown or disconnected robot"))
		return
	}

	speeds := s.Poses.Speeds(target.UniqueKey(), 100)
	summary := stats.Summarize(speeds)

	s.deliver(sess, map[string]interface{}{
		"type":             "statistics_data",
		"original_command": command,
		"mean_speed":       summary.MeanSpeed,
		"stddev_speed":     summary.StddevSpeed,
		"sample_count":     summary.SampleCount,
	})
}

func (s *Server) handleUploadFirmwareStart(sess session, command string, req map[string]interface{}) {
	ip := stringField(req, "robot_ip")
	filename := stringField(req, "filename")
	filesize, _ := intField(req, "filesize")

	if ip == "" || filename == "" {
		s.deliver(sess, commandResponse(command, "error", "missing required field: robot_ip or filename"))
		return
	}

	if err := s.Staging.Start(ip, filename, filesize); err != nil {
		shared.DebugError(err)
		s.deliver(sess, errorEnvelope(command, "failed to open firmware upload"))
		return
	}
	s.deliver(sess, commandResponse(command, "success", ""))
}

func (s *Server) handleFirmwareDataChunk(sess session, command string, req map[string]interface{}) {
	ip := stringField(req, "robot_ip")
	data := stringField(req, "data")

	received, err := s.Staging.Chunk(ip, data)
	if err != nil {
		shared.DebugError(err)
		s.deliver(sess, errorEnvelope(command, "failed to append firmware chunk"))
		return
	}

	s.deliver(sess, map[string]interface{}{
		"type":             "firmware_chunk_ack",
		"original_command": command,
		"received":         received,
	})
}

func (s *Server) handleUploadFirmwareEnd(sess session, command string, req map[string]interface{}) {
	ip := stringField(req, "robot_ip")

	path, size, err := s.Staging.Finish(ip)
	if err != nil {
		shared.DebugError(err)
		s.deliver(sess, map[string]interface{}{
			"type":    "error",
			"stage":   "upload_finish",
			"message": err.Error(),
		})
		return
	}

	s.OTA.Arm(path, ip)

	s.deliver(sess, map[string]interface{}{
		"type":          "firmware_prepared_for_ota",
		"firmware_size": size,
		"status":        "success",
	})
}
