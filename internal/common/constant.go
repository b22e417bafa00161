// Package common contains shared constants and sentinel errors used across
// FleetSync components.
package common

// AuthorizationHeaderName is the HTTP header used to carry the bearer access
// token on outbound requests to the remote store.
const AuthorizationHeaderName = "Authorization"
