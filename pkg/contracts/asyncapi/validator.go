package asyncapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed specs/dispatch-events.yaml
var dispatchEventsSpec []byte

// eventTypeExtension names the schema field that binds a payload schema to
// a CloudEvent type.
const eventTypeExtension = "x-event-type"

// EventValidator validates CloudEvent payloads against AsyncAPI schemas
type EventValidator struct {
	schemas    map[string]*jsonschema.Schema
	rawSchemas map[string]interface{}
}

// CloudEvent is the subset of the envelope the validator needs
type CloudEvent struct {
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	ID          string          `json:"id"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type asyncAPISpec struct {
	AsyncAPI   string `yaml:"asyncapi"`
	Components struct {
		Schemas map[string]map[string]interface{} `yaml:"schemas"`
	} `yaml:"components"`
}

// NewDispatchEventValidator loads the embedded dispatch events document
func NewDispatchEventValidator() (*EventValidator, error) {
	return NewEventValidatorFromBytes(dispatchEventsSpec)
}

// NewEventValidatorFromBytes compiles every component schema that declares
// an x-event-type.
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var spec asyncAPISpec
	if err := yaml.Unmarshal(specBytes, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	v := &EventValidator{
		schemas:    make(map[string]*jsonschema.Schema),
		rawSchemas: make(map[string]interface{}),
	}

	for name, schema := range spec.Components.Schemas {
		eventType, _ := schema[eventTypeExtension].(string)
		if eventType == "" {
			continue
		}

		doc, err := toJSONValue(schema)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}

		uri := "asyncapi://schemas/" + name
		if err := compiler.AddResource(uri, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}

		v.schemas[eventType] = compiled
		v.rawSchemas[eventType] = schema
	}

	return v, nil
}

// ValidateEventJSON validates a serialized CloudEvent's data payload
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event CloudEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("failed to parse CloudEvent: %w", err)
	}
	if event.SpecVersion != "1.0" {
		return fmt.Errorf("unsupported specversion %q", event.SpecVersion)
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if len(event.Data) == 0 {
		return fmt.Errorf("event data is required")
	}

	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", event.Type)
	}

	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(event.Data))
	if err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", event.Type, err)
	}
	return nil
}

// SupportedEventTypes returns the event types that have schemas, sorted
func (v *EventValidator) SupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for t := range v.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func toJSONValue(v interface{}) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
