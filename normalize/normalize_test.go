package normalize

import "testing"

func TestNormalizeIMUFrame(t *testing.T) {
	m := map[string]interface{}{
		"type": "bno055",
		"data": map[string]interface{}{
			"time": 1.0,
			"euler": []interface{}{0.0, 0.0, 1.5},
		},
	}
	env := Normalize(m)
	if env.Type != "imu_data" {
		t.Fatalf("expected imu_data, got %s", env.Type)
	}
	yaw, ok := IMUYaw(env)
	if !ok || yaw != 1.5 {
		t.Fatalf("expected yaw 1.5 from euler[2], got %v ok=%v", yaw, ok)
	}
}

func TestNormalizeEncoderFrame(t *testing.T) {
	m := map[string]interface{}{
		"type": "encoder",
		"data": []interface{}{60.0, 60.0, 60.0},
	}
	env := Normalize(m)
	if env.Type != "encoder_data" {
		t.Fatalf("expected encoder_data, got %s", env.Type)
	}
	rpm, ok := EncoderRPMs(env)
	if !ok || rpm != [3]float64{60, 60, 60} {
		t.Fatalf("unexpected rpm extraction: %v ok=%v", rpm, ok)
	}
}

func TestNormalizeLogDefaultsLevelToDebug(t *testing.T) {
	m := map[string]interface{}{
		"type":    "log",
		"message": "hello",
	}
	env := Normalize(m)
	if env.Type != "log" || env.Level != "debug" || env.Message != "hello" {
		t.Fatalf("unexpected log envelope: %+v", env)
	}
}

func TestNormalizeUnknownTypeBecomesGeneric(t *testing.T) {
	m := map[string]interface{}{"type": "custom_thing", "x": 1.0}
	env := Normalize(m)
	if env.Type != "generic_custom_thing" {
		t.Fatalf("expected generic_custom_thing, got %s", env.Type)
	}
}

func TestNormalizeNoTypeBecomesUnknownJSONData(t *testing.T) {
	m := map[string]interface{}{"foo": "bar"}
	env := Normalize(m)
	if env.Type != "unknown_json_data" {
		t.Fatalf("expected unknown_json_data, got %s", env.Type)
	}
}
