// Package secret provides a small, dependency-light secret resolution layer.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:bws:project/dotenv/key/OPENAI_API_KEY
//   - Inline use:  Bearer secretref:bws:project/dotenv/key/OPENAI_API_KEY
//
// The endpoint layer resolves its api_key_ref through this package, so a
// config can carry either a provider reference, an environment expansion,
// or a literal key without the endpoint knowing which.
package secret
