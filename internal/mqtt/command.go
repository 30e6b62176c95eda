package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ThresholdCommand asks the detector to change one channel's threshold.
type ThresholdCommand struct {
	Channel   int
	Threshold int
}

var errNotThresholdTopic = errors.New("not a threshold topic")

// ParseThresholdCommand decodes a message received on a threshold topic.
// The payload is either a bare integer ("65") or {"threshold": 65}.
// Range checks are left to the detector, which clamps.
func ParseThresholdCommand(topics Topics, topic string, payload []byte) (ThresholdCommand, error) {
	rest, ok := strings.CutPrefix(topic, topics.Prefix()+"/threshold/")
	if !ok {
		return ThresholdCommand{}, errNotThresholdTopic
	}
	id, ok := strings.CutSuffix(rest, "/set")
	if !ok {
		return ThresholdCommand{}, errNotThresholdTopic
	}

	channel, err := strconv.Atoi(id)
	if err != nil {
		return ThresholdCommand{}, fmt.Errorf("channel %q: %w", id, err)
	}

	value, err := parseThresholdValue(payload)
	if err != nil {
		return ThresholdCommand{}, err
	}

	return ThresholdCommand{Channel: channel, Threshold: value}, nil
}

func parseThresholdValue(payload []byte) (int, error) {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var body struct {
			Threshold *int `json:"threshold"`
		}
		if err := json.Unmarshal([]byte(s), &body); err != nil {
			return 0, fmt.Errorf("threshold payload: %w", err)
		}
		if body.Threshold == nil {
			return 0, errors.New("threshold payload: missing threshold")
		}
		return *body.Threshold, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("threshold payload %q: %w", s, err)
	}
	return v, nil
}
