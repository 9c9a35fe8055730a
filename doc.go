// Package chatstate holds the working state of a chat client in observable
// cells and mirrors the durable parts to a string key-value store, so a
// restart restores the previous session.
//
// A Registry is constructed once at application start and passed to every
// consumer; there is no package-level state.
//
// Data flow:
//
//	storage.Adapter -> codec.Codec -> persisted.Cell   (hydration, once, in New)
//	persisted.Cell -> codec.Codec -> storage.Adapter   (write-back, every Write)
//
// Persisted keys:
//
//	api_key                 string or null
//	streamMessages          bool
//	combined_tokens         int >= 0
//	default_assistant_role  {role, type}
//	model                   {code, name, inputCost, outputCost, tokenLimit}
//	conversations           [{history, conversationTokens, assistantRole, title}]
//
// Values that fail to decode, fail Validate, or fail a rule guard fall back
// to their defaults. Storage write failures leave the in-memory value in
// place; Registry.Err reports them.
package chatstate
