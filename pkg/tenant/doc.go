// Package tenant locates the publisher tenant addressed by an inbound request.
//
// A Locator evaluates addressing signals in a fixed priority order and stops
// at the first match:
//
//  1. Host subdomain (acme.sales.example.com -> subdomain "acme")
//  2. Host as a virtual host (custom domains such as ads.acme.com)
//  3. Explicit tenant header, as a subdomain and then as a raw tenant id
//  4. Proxy-injected host header, as a subdomain and then as a virtual host
//
// Host-derived signals outrank the explicit header so a caller cannot claim a
// tenant other than the one its connection was routed to. A request that
// matches nothing is tenant-less, which is not an error; token authentication
// may still identify the tenant later.
package tenant
