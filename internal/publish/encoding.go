// Package publish forwards session events to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoder turns an event into a message payload.
type Encoder func(attendance.Event) ([]byte, error)

// EncodeJSON encodes events as JSON objects.
func EncodeJSON(e attendance.Event) ([]byte, error) {
	return json.Marshal(e)
}

// EncodeMsgpack encodes events as msgpack maps keyed like the JSON form.
func EncodeMsgpack(e attendance.Event) ([]byte, error) {
	return msgpack.Marshal(e)
}

// EncoderFor returns the encoder named by MQTT_ENCODING.
func EncoderFor(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return EncodeJSON, nil
	case "msgpack":
		return EncodeMsgpack, nil
	default:
		return nil, fmt.Errorf("unknown MQTT encoding %q (want json or msgpack)", name)
	}
}

// Topic builds <prefix>/sessions/<session id>/<event type>.
func Topic(prefix string, e attendance.Event) string {
	prefix = strings.TrimSuffix(prefix, "/")
	return fmt.Sprintf("%s/sessions/%s/%s", prefix, e.SessionID, e.Type)
}
