package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

// SpaceUpdated is published by the floor/space subsystem whenever a space
// changes, including maintenance toggles.
type SpaceUpdated struct {
	SpaceID string `json:"space_id"`
	Active  *bool  `json:"active,omitempty"`
}

var errMissingSpaceID = errors.New("space event without space_id")

func ParseSpaceUpdated(value []byte) (SpaceUpdated, error) {
	var evt SpaceUpdated
	if err := json.Unmarshal(value, &evt); err != nil {
		return SpaceUpdated{}, err
	}
	evt.SpaceID = strings.TrimSpace(evt.SpaceID)
	if evt.SpaceID == "" {
		return SpaceUpdated{}, errMissingSpaceID
	}
	return evt, nil
}

// Invalidator drops cached state for one space.
type Invalidator interface {
	Invalidate(ctx context.Context, spaceID string) error
}

// InvalidateSpaces returns a handler that evicts the updated space from the
// cache. Malformed payloads are logged and skipped so they do not block the
// partition.
func InvalidateSpaces(inv Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		evt, err := ParseSpaceUpdated(msg.Value)
		if err != nil {
			logger.Error("invalid space event payload", "err", err, "topic", msg.Topic, "offset", msg.Offset)
			return nil
		}
		if err := inv.Invalidate(ctx, evt.SpaceID); err != nil {
			return err
		}
		logger.Info("space cache invalidated", "space_id", evt.SpaceID)
		return nil
	}
}
