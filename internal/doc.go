// Package internal contains helper utilities that are intentionally private
// to kaijuauth, currently secure session-id generation and parsing.
//
// # What this package must NOT do
//
//   - Export types that appear in the public kaijuauth API.
//   - Be imported by any package outside the kaijuauth module.
package internal
