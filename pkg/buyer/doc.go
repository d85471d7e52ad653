// Package buyer is a client for the sellside gateway as a buying agent sees
// it. It speaks both protocol surfaces (MCP tool calls and A2A JSON-RPC) and
// controls the request details tenant resolution depends on: the Host
// header, the explicit tenant header and where the credential travels.
//
// It backs the buyer command and is meant for smoke tests against a
// deployed gateway, including through CDNs and proxies.
package buyer
