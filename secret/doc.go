// Package secret resolves credentials referenced from guardchain
// configuration.
//
// Configuration values go through strict environment expansion and then
// secret reference resolution:
//   - ${VAR} must be set; $$ is a literal dollar sign.
//   - secretref:<provider>:<ref> is replaced by the provider's value, either
//     as the whole value or inline ("Bearer secretref:env:API_TOKEN").
//
// Two providers are built in: "env" reads an environment variable and "file"
// reads a file such as a mounted container secret. Resolver.ResolveTree walks
// the free-form option maps handed to auth strategy factories so JWT secrets,
// API key hashes and introspection client secrets never live in the YAML.
package secret
