// Package models maps the chat model ids exposed to users onto provider
// model names.
package models

import (
	"sort"
	"sync"
)

const (
	ChatModelSmall     = "chat-model-small"
	ChatModelLarge     = "chat-model-large"
	ChatModelReasoning = "chat-model-reasoning"
	TitleModel         = "title-model"
	ArtifactModel      = "artifact-model"

	DefaultChatModel = ChatModelSmall
)

type ChatModel struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description" yaml:"description"`
	ProviderModel string `json:"-" yaml:"provider_model"`
	// ReasoningTag names the tag that wraps reasoning in the model output,
	// e.g. "think" for <think>...</think>. Empty when the model does not reason.
	ReasoningTag string `json:"-" yaml:"reasoning_tag,omitempty"`
	Selectable   bool   `json:"-" yaml:"selectable"`
}

func defaultModels() []ChatModel {
	return []ChatModel{
		{
			ID:            ChatModelSmall,
			Name:          "Small model",
			Description:   "Small model for fast, lightweight tasks",
			ProviderModel: "mixtral-8x7b-32768",
			Selectable:    true,
		},
		{
			ID:            ChatModelLarge,
			Name:          "Large model",
			Description:   "Large model for complex, multi-step tasks",
			ProviderModel: "llama-3.3-70b-versatile",
			Selectable:    true,
		},
		{
			ID:            ChatModelReasoning,
			Name:          "Reasoning model",
			Description:   "Uses advanced reasoning",
			ProviderModel: "deepseek-r1-distill-llama-70b",
			ReasoningTag:  "think",
			Selectable:    true,
		},
		{ID: TitleModel, Name: "Title model", ProviderModel: "llama-3.3-70b-versatile"},
		{ID: ArtifactModel, Name: "Artifact model", ProviderModel: "llama-3.3-70b-versatile"},
	}
}

// Registry is a read-mostly set of chat models.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ChatModel
	order  []string
}

// NewRegistry returns the built-in models with provider model names replaced
// by overrides, keyed by model id.
func NewRegistry(overrides map[string]string) *Registry {
	r := &Registry{models: map[string]ChatModel{}}
	for _, m := range defaultModels() {
		if pm, ok := overrides[m.ID]; ok && pm != "" {
			m.ProviderModel = pm
		}
		r.register(m)
	}
	return r
}

func (r *Registry) register(m ChatModel) {
	if _, ok := r.models[m.ID]; !ok {
		r.order = append(r.order, m.ID)
	}
	r.models[m.ID] = m
}

// Register adds or replaces a model.
func (r *Registry) Register(m ChatModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(m)
}

func (r *Registry) Get(id string) (ChatModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// Resolve returns the selectable model with the given id, or the default chat
// model when id is empty or not selectable.
func (r *Registry) Resolve(id string) ChatModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[id]; ok && m.Selectable {
		return m
	}
	return r.models[DefaultChatModel]
}

// Selectable lists the models users may pick, in registration order.
func (r *Registry) Selectable() []ChatModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := []ChatModel{}
	for _, id := range r.order {
		if m := r.models[id]; m.Selectable {
			ret = append(ret, m)
		}
	}
	return ret
}

// IDs returns every registered id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.models))
	for id := range r.models {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}
