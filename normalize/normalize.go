// Package normalize transforms a raw robot JSON frame into the canonical
// envelope shape consumed by the pose estimator, log sink, and subscription
// router. Normalization is pure and stateless: the same input always
// produces the same envelope shape.
package normalize

import "fmt"

// Envelope is the canonical frame shape emitted by Normalize. RobotIP,
// RobotAlias, and Timestamp are left zero-valued here; the session handler
// stamps them after normalization, since normalization has no notion of
// which connection a frame arrived on.
type Envelope struct {
	Type       string      `json:"type"`
	RobotIP    string      `json:"robot_ip,omitempty"`
	RobotAlias string      `json:"robot_alias,omitempty"`
	Timestamp  float64     `json:"timestamp,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Level      string      `json:"level,omitempty"`
}

// Normalize maps a decoded robot frame M to its canonical envelope, per the
// robot-shape table: bno055 -> imu_data, encoder -> encoder_data, log ->
// log (default level "debug"), registration -> registration, any other
// typed frame -> generic_<type>, and an untyped frame -> unknown_json_data.
func Normalize(m map[string]interface{}) Envelope {
	rawType, _ := m["type"].(string)

	switch rawType {
	case "bno055":
		return Envelope{
			Type: "imu_data",
			Data: m["data"],
		}
	case "encoder":
		return Envelope{
			Type: "encoder_data",
			Data: m["data"],
		}
	case "log":
		level, _ := m["level"].(string)
		if level == "" {
			level = "debug"
		}
		message, _ := m["message"].(string)
		return Envelope{
			Type:    "log",
			Message: message,
			Level:   level,
		}
	case "registration":
		return Envelope{
			Type: "registration",
			Data: registrationData(m),
		}
	case "":
		return Envelope{
			Type: "unknown_json_data",
			Data: m,
		}
	default:
		return Envelope{
			Type: fmt.Sprintf("generic_%s", rawType),
			Data: m,
		}
	}
}

func registrationData(m map[string]interface{}) map[string]interface{} {
	data, _ := m["data"].(map[string]interface{})
	capabilities := interface{}(nil)
	reportedID := interface{}(nil)
	if data != nil {
		capabilities = data["capabilities"]
		reportedID = data["robot_reported_id"]
	} else {
		capabilities = m["capabilities"]
		reportedID = m["robot_reported_id"]
	}
	return map[string]interface{}{
		"capabilities":      capabilities,
		"robot_reported_id": reportedID,
	}
}

// EncoderRPMs extracts the [rpm1, rpm2, rpm3] triplet from an encoder_data
// envelope's Data field, returning ok=false if the shape does not match.
func EncoderRPMs(e Envelope) (rpm [3]float64, ok bool) {
	if e.Type != "encoder_data" {
		return rpm, false
	}
	raw, isSlice := e.Data.([]interface{})
	if !isSlice || len(raw) < 3 {
		return rpm, false
	}
	for i := 0; i < 3; i++ {
		v, isNum := raw[i].(float64)
		if !isNum {
			return rpm, false
		}
		rpm[i] = v
	}
	return rpm, true
}

// IMUYaw extracts the heading (yaw) from an imu_data envelope's Data field:
// either a direct "yaw" key, or euler[2] from a 3-element euler array.
func IMUYaw(e Envelope) (yaw float64, ok bool) {
	if e.Type != "imu_data" {
		return 0, false
	}
	data, isMap := e.Data.(map[string]interface{})
	if !isMap {
		return 0, false
	}
	if raw, has := data["yaw"]; has {
		if v, isNum := raw.(float64); isNum {
			return v, true
		}
	}
	if raw, has := data["euler"]; has {
		if euler, isSlice := raw.([]interface{}); isSlice && len(euler) >= 3 {
			if v, isNum := euler[2].(float64); isNum {
				return v, true
			}
		}
	}
	return 0, false
}

// FrameTimestamp extracts a numeric "time" or "timestamp" field from the
// raw frame, used by the pose estimator as the encoder's own clock before
// falling back to wall-clock arrival time.
func FrameTimestamp(m map[string]interface{}) (float64, bool) {
	if raw, has := m["timestamp"]; has {
		if v, isNum := raw.(float64); isNum {
			return v, true
		}
	}
	if raw, has := m["time"]; has {
		if v, isNum := raw.(float64); isNum {
			return v, true
		}
	}
	return 0, false
}
