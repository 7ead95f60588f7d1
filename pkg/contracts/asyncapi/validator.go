package asyncapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/printflow/job-lifecycle/pkg/cloudevents"
)

//go:embed lifecycle.asyncapi.yaml
var lifecycleSpec []byte

const specResourceURL = "asyncapi://printflow/lifecycle.json"

// EventValidator validates CloudEvent data payloads against the message
// schemas of an AsyncAPI document. Channel addresses are event types.
type EventValidator struct {
	schemas  map[string]*jsonschema.Schema
	compiler *jsonschema.Compiler
}

// AsyncAPISpec represents the relevant parts of an AsyncAPI specification.
type AsyncAPISpec struct {
	AsyncAPI string                     `yaml:"asyncapi"`
	Info     AsyncAPIInfo               `yaml:"info"`
	Channels map[string]AsyncAPIChannel `yaml:"channels"`
}

// AsyncAPIInfo contains AsyncAPI info section.
type AsyncAPIInfo struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// AsyncAPIChannel represents a channel in AsyncAPI.
type AsyncAPIChannel struct {
	Address  string                     `yaml:"address"`
	Messages map[string]AsyncAPIMessage `yaml:"messages"`
}

// AsyncAPIMessage carries a message payload reference.
type AsyncAPIMessage struct {
	Payload struct {
		Ref string `yaml:"$ref"`
	} `yaml:"payload"`
}

// NewLifecycleValidator builds a validator from the embedded lifecycle
// event contract.
func NewLifecycleValidator() (*EventValidator, error) {
	return NewEventValidatorFromBytes(lifecycleSpec)
}

// NewEventValidator creates a new event validator from an AsyncAPI specification file.
func NewEventValidator(asyncAPIPath string) (*EventValidator, error) {
	data, err := os.ReadFile(asyncAPIPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsyncAPI spec: %w", err)
	}

	return NewEventValidatorFromBytes(data)
}

// NewEventValidatorFromBytes creates a new event validator from AsyncAPI specification bytes.
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var spec AsyncAPISpec
	if err := yaml.Unmarshal(specBytes, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	doc, err := yamlToJSONDocument(specBytes)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	if err := compiler.AddResource(specResourceURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add AsyncAPI document: %w", err)
	}

	schemas := make(map[string]*jsonschema.Schema)
	for name, channel := range spec.Channels {
		if channel.Address == "" {
			return nil, fmt.Errorf("channel %s has no address", name)
		}
		for msgName, msg := range channel.Messages {
			ref := msg.Payload.Ref
			if !strings.HasPrefix(ref, "#/") {
				return nil, fmt.Errorf("message %s.%s: payload must be a local $ref", name, msgName)
			}

			compiled, err := compiler.Compile(specResourceURL + ref)
			if err != nil {
				return nil, fmt.Errorf("failed to compile %s: %w", ref, err)
			}
			schemas[channel.Address] = compiled
		}
	}

	return &EventValidator{
		schemas:  schemas,
		compiler: compiler,
	}, nil
}

// yamlToJSONDocument round-trips YAML through JSON so numbers and maps have
// the shapes the schema compiler expects.
func yamlToJSONDocument(specBytes []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(specBytes, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert AsyncAPI spec: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode AsyncAPI spec: %w", err)
	}
	return doc, nil
}

// ValidateEvent validates a CloudEvent envelope and its data payload.
func (v *EventValidator) ValidateEvent(event *cloudevents.LifecycleCloudEvent) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.ID == "" || event.Source == "" {
		return fmt.Errorf("event id and source are required")
	}
	if event.SpecVersion != cloudevents.SpecVersion {
		return fmt.Errorf("unsupported specversion %q", event.SpecVersion)
	}
	if len(event.Data) == 0 {
		return fmt.Errorf("event data is required")
	}

	return v.ValidateData(event.Type, event.Data)
}

// ValidateData validates a raw data payload against the schema of eventType.
func (v *EventValidator) ValidateData(eventType string, data []byte) error {
	schema, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", eventType)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", eventType, err)
	}

	return nil
}

// ValidateEventJSON validates a CloudEvent from JSON bytes.
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event cloudevents.LifecycleCloudEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("failed to parse CloudEvent: %w", err)
	}
	return v.ValidateEvent(&event)
}

// SupportedEventTypes returns all event types that have registered schemas.
func (v *EventValidator) SupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for eventType := range v.schemas {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// HasSchema checks if a schema exists for the given event type.
func (v *EventValidator) HasSchema(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}
