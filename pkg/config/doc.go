// Package config loads kfold's YAML documents.
//
// A [Loader] decodes one document type, validates it against its JSON
// schema and annotates failures with an excerpt of the offending source.
// [LoadSettings] wires the loader to the tool settings document.
package config
