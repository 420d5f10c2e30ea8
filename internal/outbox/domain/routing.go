package domain

import (
	"encoding/json"
	"slices"
	"strings"
	"unicode"
)

// TopicResolver maps event types to broker topics.
type TopicResolver struct {
	topicMap     map[string]string
	defaultTopic string
	known        map[string]struct{}
}

// NewTopicResolver creates a TopicResolver. topicMap overrides the derived
// topic for specific event types. A derived topic is used only when it is one
// of knownTopics; otherwise the event goes to defaultTopic.
func NewTopicResolver(topicMap map[string]string, defaultTopic string, knownTopics []string) *TopicResolver {
	known := make(map[string]struct{}, len(knownTopics))
	for _, topic := range knownTopics {
		if topic = strings.TrimSpace(topic); topic != "" {
			known[topic] = struct{}{}
		}
	}
	return &TopicResolver{topicMap: topicMap, defaultTopic: defaultTopic, known: known}
}

// Resolve returns the topic for eventType. An explicit topic wins, then the
// configured map, then the derived "<first word>-events" name when it is a
// known topic, then the default topic.
func (r *TopicResolver) Resolve(eventType, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if topic, ok := r.topicMap[eventType]; ok {
		return topic
	}
	if prefix := leadingWord(eventType); prefix != "" {
		if _, ok := r.known[prefix+"-events"]; ok {
			return prefix + "-events"
		}
	}
	return r.defaultTopic
}

// Topics returns every topic Resolve can produce without an explicit topic,
// sorted: the known topics, the mapped topics and the default topic.
func (r *TopicResolver) Topics() []string {
	set := make(map[string]struct{}, len(r.known)+len(r.topicMap)+1)
	for topic := range r.known {
		set[topic] = struct{}{}
	}
	for _, topic := range r.topicMap {
		set[topic] = struct{}{}
	}
	if r.defaultTopic != "" {
		set[r.defaultTopic] = struct{}{}
	}

	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}

// leadingWord extracts the first word of an event type in lower case:
// "UserRegistered" -> "user", "invoice.paid" -> "invoice".
func leadingWord(eventType string) string {
	var b strings.Builder
	for i, r := range eventType {
		if r == '.' || r == '_' || r == '-' || r == ' ' {
			break
		}
		if i > 0 && unicode.IsUpper(r) {
			break
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// entityRef is the part of an event payload used to derive a partition key.
type entityRef struct {
	ID json.RawMessage `json:"id"`
}

// PartitionKeyFor returns the partition key of an event: the explicit key when
// given, otherwise the payload's top-level "id" field. Returns nil when neither exists.
func PartitionKeyFor(explicit string, payload json.RawMessage) *string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return &explicit
	}

	var ref entityRef
	if err := json.Unmarshal(payload, &ref); err != nil || len(ref.ID) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(ref.ID, &s); err == nil {
		if s == "" {
			return nil
		}
		return &s
	}

	var n json.Number
	if err := json.Unmarshal(ref.ID, &n); err == nil {
		key := n.String()
		return &key
	}
	return nil
}
