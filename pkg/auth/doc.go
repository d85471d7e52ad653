// Package auth authenticates advertiser principals and binds each request to
// exactly one tenant and principal.
//
// Every protocol adapter runs the same pipeline through a Resolver:
//
//  1. tenant.Locator finds the tenant addressed by the request headers.
//  2. TokenAuthenticator checks the bearer token, scoped to that tenant when
//     one was found, otherwise by a global lookup that must match exactly one
//     tenant (global fallback).
//  3. Bind stores the resulting RequestContext in a per-request
//     context.Context. Business logic reads it with FromContext.
//
// Failures are reported as *AuthError values whose Code selects the
// protocol-level response. Tokens are never logged; collisions are reported
// by fingerprint only.
package auth
