// Package engine is the composition root that assembles a chain from YAML
// configuration: it builds the provider completer, loads the prompt
// template, opens the history store, and wires the fixed header and sandwich
// blocks. Frontends run the chain through [Engine] and observe activity
// through an [EventBus].
package engine
