package events

import "encoding/json"

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// Decode unmarshals the message payload into the event type its topic names.
// Unknown topics decode into a generic map.
func (m Message) Decode() (any, error) {
	var out any
	switch m.Topic {
	case TopicTablePulled:
		out = &TablePulled{}
	case TopicRecordAdded:
		out = &RecordAdded{}
	case TopicRecordUpdated:
		out = &RecordUpdated{}
	case TopicRecordReplaced:
		out = &RecordReplaced{}
	case TopicRecordDeleted:
		out = &RecordDeleted{}
	default:
		generic := map[string]any{}
		if err := json.Unmarshal(m.Data, &generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
	if err := json.Unmarshal(m.Data, out); err != nil {
		return nil, err
	}
	return out, nil
}
