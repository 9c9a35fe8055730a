package chatstate

// Storage keys.
const (
	KeyAPIKey               = "api_key"
	KeyStreamMessages       = "streamMessages"
	KeyCombinedTokens       = "combined_tokens"
	KeyDefaultAssistantRole = "default_assistant_role"
	KeyModel                = "model"
	KeyConversations        = "conversations"
)

// DefaultAssistantPrompt seeds new conversations when no role is configured.
const DefaultAssistantPrompt = "You are a helpful assistant."

var modelCatalog = []GptModel{
	{Code: "gpt-3.5-turbo", Name: "GPT 3.5 Turbo", InputCost: 0.002, OutputCost: 0.002, TokenLimit: 4096},
	{Code: "gpt-4", Name: "GPT 4", InputCost: 0.03, OutputCost: 0.06, TokenLimit: 8192},
	{Code: "gpt-4-32k", Name: "GPT 4 32K", InputCost: 0.06, OutputCost: 0.12, TokenLimit: 32768},
}

// Models returns the built-in model catalog; the first entry is the default.
func Models() []GptModel {
	return append([]GptModel(nil), modelCatalog...)
}

// LookupModel finds a catalog model by code.
func LookupModel(code string) (GptModel, bool) {
	for _, m := range modelCatalog {
		if m.Code == code {
			return m, true
		}
	}
	return GptModel{}, false
}

// DefaultModel returns the model selected on a fresh installation.
func DefaultModel() GptModel {
	return modelCatalog[0]
}

// DefaultRole returns the assistant role used on a fresh installation.
func DefaultRole() DefaultAssistantRole {
	return DefaultAssistantRole{Role: DefaultAssistantPrompt, Type: "system"}
}

// DefaultConversations returns the single empty conversation seeded on a
// fresh installation.
func DefaultConversations() ConversationList {
	return ConversationList{NewConversationWithRole(DefaultAssistantPrompt)}
}
