package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"sikuli-bot/src/contracts"
)

// PublishRunEvent publishes ev on contracts.TopicRuns, keyed by build name.
func PublishRunEvent(ctx context.Context, b Broker, ev contracts.RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}
	key := ev.BuildName
	if key == "" {
		key = ev.RunID
	}
	return b.Publish(ctx, contracts.TopicRuns, key, data)
}

// DecodeRunEvent parses a message published by PublishRunEvent.
func DecodeRunEvent(msg Message) (contracts.RunEvent, error) {
	var ev contracts.RunEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode run event at offset %d: %w", msg.Offset, err)
	}
	return ev, nil
}
